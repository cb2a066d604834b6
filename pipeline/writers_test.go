package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/aluiziolira/leadscout/models"
)

func sorriso() *models.Lead {
	return &models.Lead{
		CompanyName:    "Clínica Sorriso",
		Niche:          "Clínica Odontológica",
		Territory:      "Belém",
		Website:        models.NoSite,
		Phone:          "(91) 3222-1234",
		WhatsApp:       "559132221234",
		Instagram:      models.NotFound,
		GoogleMaps:     "https://maps.test/place/sorriso",
		WebsiteQuality: models.QualityNone,
		Notes:          "no own site | no social presence",
		ScrapedAt:      time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC),
	}
}

func TestCSVSinkWritesBOMAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "leads.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("new csv sink: %v", err)
	}

	if err := sink.Append(context.Background(), []*models.Lead{sorriso()}); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Fatalf("csv missing UTF-8 BOM")
	}
	lines := strings.Split(strings.TrimSpace(string(bytes.TrimPrefix(data, utf8BOM))), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want 2", len(lines))
	}
	if lines[0] != strings.Join(csvHeader, ",") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "https://wa.me/559132221234") {
		t.Fatalf("row missing whatsapp link: %q", lines[1])
	}
}

func TestCSVSinkMergesAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("new csv sink: %v", err)
	}
	ctx := context.Background()

	first := sorriso()
	other := newLead("Odonto Center", "https://maps.test/place/center")
	if err := sink.Append(ctx, []*models.Lead{first, other}); err != nil {
		t.Fatalf("first append: %v", err)
	}

	second := sorriso()
	second.Website = "https://clinicasorriso.com.br"
	second.WebsiteQuality = models.QualityGood
	second.Notes = "no social presence"
	if err := sink.Append(ctx, []*models.Lead{second}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	leads, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("leads = %d, want 2", len(leads))
	}
	if leads[0].CompanyName != "Odonto Center" {
		t.Fatalf("leads[0] = %q, want Odonto Center", leads[0].CompanyName)
	}
	got := leads[1]
	if got.CompanyName != "Clínica Sorriso" || got.Website != "https://clinicasorriso.com.br" {
		t.Fatalf("merged lead not replaced: %+v", got)
	}
	if got.WhatsApp != "559132221234" {
		t.Fatalf("whatsapp = %q, want 559132221234", got.WhatsApp)
	}
	if !got.ScrapedAt.Equal(second.ScrapedAt) {
		t.Fatalf("scraped at = %v, want %v", got.ScrapedAt, second.ScrapedAt)
	}
}

func TestCSVSinkColumnOrderAndStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.csv")
	previous := "Empresa,Nicho,Site,WhatsApp,Instagram,Google_Maps,Status,Notas\n" +
		"Clínica Sorriso,Clínica Odontológica,,(91) 3222-1234,,,Contatado,\n"
	if err := os.WriteFile(path, []byte(previous), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("new csv sink: %v", err)
	}

	other := newLead("Odonto Center", "https://maps.test/place/center")
	if err := sink.Append(context.Background(), []*models.Lead{sorriso(), other}); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	header := strings.SplitN(string(bytes.TrimPrefix(data, utf8BOM)), "\n", 2)[0]
	if !strings.HasPrefix(header, "Empresa,Nicho,Site,WhatsApp,Instagram,Google_Maps,Status,Notas,Link_WhatsApp") {
		t.Fatalf("unexpected column order %q", header)
	}

	leads, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("leads = %d, want 2", len(leads))
	}
	if leads[0].CompanyName != "Clínica Sorriso" || leads[0].Status != "Contatado" {
		t.Fatalf("status set by hand lost: %+v", leads[0])
	}
	if leads[1].Status != StatusPending {
		t.Fatalf("new lead status = %q, want %q", leads[1].Status, StatusPending)
	}
}

func TestReadCSVMissingFile(t *testing.T) {
	leads, err := ReadCSV(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil {
		t.Fatalf("read missing csv: %v", err)
	}
	if len(leads) != 0 {
		t.Fatalf("leads = %d, want 0", len(leads))
	}
}

func TestReadCSVOlderExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.csv")
	content := "Empresa,Site,WhatsApp\nClínica Sorriso,,(91) 3222-1234\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	leads, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("leads = %d, want 1", len(leads))
	}
	got := leads[0]
	if got.Website != models.NoSite || got.Instagram != models.NotFound {
		t.Fatalf("missing columns not filled with sentinels: %+v", got)
	}
	if got.WebsiteQuality != models.QualityNone {
		t.Fatalf("quality = %q, want %q", got.WebsiteQuality, models.QualityNone)
	}
	if got.WhatsApp != "559132221234" {
		t.Fatalf("whatsapp = %q", got.WhatsApp)
	}
}

func TestJSONSinkKeepsCRMFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.json")
	existing := []jsonLead{{
		ID:      "clinicasorrisobelem",
		Empresa: "Clínica Sorriso",
		Contato: "Dra. Ana",
		Email:   "ana@sorriso.test",
		Status:  "Contatado",
		Valor:   1500,
	}}
	data, err := json.Marshal(existing)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	sink, err := NewJSONSink(path)
	if err != nil {
		t.Fatalf("new json sink: %v", err)
	}
	fresh := newLead("Odonto Center", "https://maps.test/place/center")
	if err := sink.Append(context.Background(), []*models.Lead{sorriso(), fresh}); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := readJSON(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	got := records[0]
	if got.ID != "clinicasorrisobelem" {
		t.Fatalf("id = %q", got.ID)
	}
	if got.Contato != "Dra. Ana" || got.Email != "ana@sorriso.test" || got.Valor != 1500 || got.Status != "Contatado" {
		t.Fatalf("crm fields lost: %+v", got)
	}
	if got.WhatsApp != "559132221234" || got.LinkWhatsApp != "https://wa.me/559132221234" {
		t.Fatalf("scraped fields not refreshed: %+v", got)
	}
	if got.DataContato != "2026-10-18" {
		t.Fatalf("dataContato = %q", got.DataContato)
	}
	if records[1].Status != StatusNew {
		t.Fatalf("new record status = %q, want %q", records[1].Status, StatusNew)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw json: %v", err)
	}
	if !strings.Contains(string(raw), "Clínica Sorriso") {
		t.Fatalf("json should keep accented text unescaped")
	}
}

func TestSQLiteSinkUpsertsByDocumentID(t *testing.T) {
	sink, err := OpenSQLiteSink(filepath.Join(t.TempDir(), "leads.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer sink.Close()
	ctx := context.Background()

	if err := sink.Append(ctx, []*models.Lead{sorriso()}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	updated := sorriso()
	updated.Instagram = "https://instagram.com/clinicasorriso"
	updated.Notes = "no own site"
	if err := sink.Append(ctx, []*models.Lead{updated, newLead("Odonto Center", "u")}); err != nil {
		t.Fatalf("second append: %v", err)
	}

	leads, err := sink.Leads(ctx)
	if err != nil {
		t.Fatalf("leads: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("leads = %d, want 2", len(leads))
	}
	// ordered by id: clinicasorrisobelem < odontocenterbelem
	if leads[0].Instagram != "https://instagram.com/clinicasorriso" || leads[0].Notes != "no own site" {
		t.Fatalf("row not replaced: %+v", leads[0])
	}
	if leads[0].WebsiteQuality != models.QualityNone {
		t.Fatalf("quality = %q", leads[0].WebsiteQuality)
	}
}

func TestFirestoreDocument(t *testing.T) {
	id, doc := firestoreDocument(sorriso())
	if id != "clinicasorrisobelem" {
		t.Fatalf("id = %q", id)
	}
	if doc["linkWhatsApp"] != "https://wa.me/559132221234" {
		t.Fatalf("linkWhatsApp = %v", doc["linkWhatsApp"])
	}
	if doc["websiteQuality"] != string(models.QualityNone) {
		t.Fatalf("websiteQuality = %v", doc["websiteQuality"])
	}
	if doc["updatedAt"] != firestore.ServerTimestamp {
		t.Fatalf("updatedAt should be a server timestamp")
	}
	for _, owned := range []string{"status", "contato", "valor"} {
		if _, ok := doc[owned]; ok {
			t.Fatalf("document must not overwrite %q", owned)
		}
	}
}
