package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aluiziolira/leadscout/models"
	"github.com/aluiziolira/leadscout/parser"
)

const leadsTable = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	company_name    TEXT NOT NULL,
	niche           TEXT NOT NULL DEFAULT '',
	territory       TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	whatsapp        TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL DEFAULT '',
	instagram       TEXT NOT NULL DEFAULT '',
	google_maps     TEXT NOT NULL DEFAULT '',
	website_quality TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	link_whatsapp   TEXT NOT NULL DEFAULT '',
	scraped_at      TEXT NOT NULL DEFAULT '',
	updated_at      TEXT NOT NULL
);`

const upsertLead = `
INSERT INTO leads (id, company_name, niche, territory, phone, whatsapp, website, instagram,
	google_maps, website_quality, notes, link_whatsapp, scraped_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	company_name = excluded.company_name,
	niche = excluded.niche,
	territory = excluded.territory,
	phone = excluded.phone,
	whatsapp = excluded.whatsapp,
	website = excluded.website,
	instagram = excluded.instagram,
	google_maps = excluded.google_maps,
	website_quality = excluded.website_quality,
	notes = excluded.notes,
	link_whatsapp = excluded.link_whatsapp,
	scraped_at = excluded.scraped_at,
	updated_at = excluded.updated_at;`

// SQLiteSink upserts leads into a local document table keyed like the
// Firestore collection.
type SQLiteSink struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteSink opens (or creates) the database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, leadsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create leads table: %w", err)
	}
	return &SQLiteSink{db: db, now: time.Now}, nil
}

// Name identifies the sink in errors and metrics.
func (ss *SQLiteSink) Name() string { return "sqlite" }

// Append upserts every lead in one transaction.
func (ss *SQLiteSink) Append(ctx context.Context, leads []*models.Lead) error {
	tx, err := ss.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertLead)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	updatedAt := formatTime(ss.now())
	for _, l := range leads {
		_, err := stmt.ExecContext(ctx,
			parser.DocumentID(l.CompanyName, l.Territory),
			l.CompanyName, l.Niche, l.Territory, l.Phone, l.WhatsApp,
			l.Website, l.Instagram, l.GoogleMaps, string(l.WebsiteQuality),
			l.Notes, l.WhatsAppLink(), formatTime(l.ScrapedAt), updatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert %q: %w", l.CompanyName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Leads returns every stored lead ordered by id.
func (ss *SQLiteSink) Leads(ctx context.Context) ([]*models.Lead, error) {
	rows, err := ss.db.QueryContext(ctx, `
SELECT company_name, niche, territory, phone, whatsapp, website, instagram,
	google_maps, website_quality, notes, scraped_at
FROM leads ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var out []*models.Lead
	for rows.Next() {
		var (
			l         models.Lead
			quality   string
			scrapedAt string
		)
		if err := rows.Scan(&l.CompanyName, &l.Niche, &l.Territory, &l.Phone, &l.WhatsApp,
			&l.Website, &l.Instagram, &l.GoogleMaps, &quality, &l.Notes, &scrapedAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		l.WebsiteQuality = models.WebsiteQuality(quality)
		l.ScrapedAt = parseTime(scrapedAt)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (ss *SQLiteSink) Close() error {
	if ss == nil || ss.db == nil {
		return nil
	}
	return ss.db.Close()
}
