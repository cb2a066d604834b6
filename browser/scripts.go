package browser

import "fmt"

const (
	feedSelector    = `div[role="article"]`
	detailSelector  = `div[role="main"] h1`
	panelScrollStep = 400
	feedScrollStep  = 800
)

// consentScript dismisses the cookie wall shown to fresh profiles.
const consentScript = `(() => {
  const labels = ["aceitar tudo", "accept all", "rejeitar tudo", "reject all"];
  for (const b of document.querySelectorAll("button")) {
    const text = (b.innerText || "").trim().toLowerCase();
    if (labels.includes(text)) { b.click(); return true; }
  }
  return false;
})()`

// feedScrollScript scrolls the result list so the next cards load.
const feedScrollScript = `(() => {
  const feed = document.querySelector('div[role="feed"]');
  if (!feed) return false;
  feed.scrollBy(0, %d);
  return true;
})()`

// panelScrollScript scrolls the detail panel's scrollable container by a delta.
const panelScrollScript = `(() => {
  const main = document.querySelector('div[role="main"]');
  if (!main) return false;
  let target = main;
  for (const el of main.querySelectorAll("div")) {
    if (el.scrollHeight > el.clientHeight + 10) { target = el; break; }
  }
  target.scrollBy(0, %d);
  return true;
})()`

func feedScroll() string {
	return fmt.Sprintf(feedScrollScript, feedScrollStep)
}

func panelScroll(delta int) string {
	return fmt.Sprintf(panelScrollScript, delta)
}
