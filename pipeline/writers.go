package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/leadscout/models"
	"github.com/aluiziolira/leadscout/parser"
)

// utf8BOM lets spreadsheet software detect the encoding of the CSV export.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"Empresa", "Nicho", "Site", "WhatsApp", "Instagram", "Google_Maps",
	"Status", "Notas", "Link_WhatsApp", "Territorio", "WebsiteQuality", "Data_Coleta",
}

// StatusPending is the CSV status of a lead nobody has worked yet.
const StatusPending = "Pendente"

// CSVSink merges leads into a spreadsheet-friendly CSV file.
type CSVSink struct {
	path string
}

// NewCSVSink returns a sink writing to path. The file is created on first append.
func NewCSVSink(path string) (*CSVSink, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &CSVSink{path: path}, nil
}

// Name identifies the sink in errors and metrics.
func (cs *CSVSink) Name() string { return "csv" }

// Append merges leads with the file's current contents, last write wins per company.
func (cs *CSVSink) Append(ctx context.Context, leads []*models.Lead) error {
	return withFileLock(ctx, cs.path, func() error {
		existing, err := ReadCSV(cs.path)
		if err != nil {
			return err
		}
		merged := Merge(existing, leads, (*models.Lead).Key, keepStatus)
		return writeAtomic(cs.path, func(f *os.File) error {
			return writeCSV(f, merged)
		})
	})
}

// Close is a no-op; each append opens and replaces the file.
func (cs *CSVSink) Close() error { return nil }

// keepStatus carries a status set by hand in the spreadsheet into the fresh row.
func keepStatus(prev, next *models.Lead) *models.Lead {
	if next.Status != "" || prev.Status == "" {
		return next
	}
	kept := *next
	kept.Status = prev.Status
	return &kept
}

func writeCSV(w io.Writer, leads []*models.Lead) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write csv bom: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, lead := range leads {
		record := []string{
			lead.CompanyName,
			lead.Niche,
			lead.Website,
			lead.Phone,
			lead.Instagram,
			lead.GoogleMaps,
			parser.OrSentinel(lead.Status, StatusPending),
			lead.Notes,
			lead.WhatsAppLink(),
			lead.Territory,
			string(lead.WebsiteQuality),
			formatTime(lead.ScrapedAt),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// ReadCSV loads leads from a CSV export. A missing file yields no leads.
// Columns are matched by header name, so older exports with fewer or extra
// columns still load.
func ReadCSV(path string) ([]*models.Lead, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(name)] = i
	}
	col := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	leads := make([]*models.Lead, 0, len(rows)-1)
	for _, row := range rows[1:] {
		lead := &models.Lead{
			CompanyName:    col(row, "Empresa"),
			Niche:          col(row, "Nicho"),
			Website:        parser.OrSentinel(col(row, "Site"), models.NoSite),
			Phone:          parser.OrSentinel(col(row, "WhatsApp"), models.NotFound),
			Instagram:      parser.OrSentinel(col(row, "Instagram"), models.NotFound),
			GoogleMaps:     col(row, "Google_Maps"),
			Territory:      col(row, "Territorio"),
			WebsiteQuality: models.WebsiteQuality(col(row, "WebsiteQuality")),
			Status:         col(row, "Status"),
			Notes:          col(row, "Notas"),
			ScrapedAt:      parseTime(col(row, "Data_Coleta")),
		}
		lead.WhatsApp, _ = parser.NormalizePhone(lead.Phone)
		if lead.WebsiteQuality == "" {
			lead.WebsiteQuality = parser.WebsiteQuality(lead.Website)
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// jsonLead is the record shape the front-end application consumes.
type jsonLead struct {
	ID             string  `json:"id"`
	Empresa        string  `json:"empresa"`
	Contato        string  `json:"contato"`
	Email          string  `json:"email"`
	Telefone       string  `json:"telefone"`
	WhatsApp       string  `json:"whatsapp"`
	Site           string  `json:"site"`
	Instagram      string  `json:"instagram"`
	GoogleMaps     string  `json:"googleMaps"`
	Nicho          string  `json:"nicho"`
	Territorio     string  `json:"territorio"`
	WebsiteQuality string  `json:"websiteQuality"`
	Status         string  `json:"status"`
	Notas          string  `json:"notas"`
	DataContato    string  `json:"dataContato"`
	Valor          float64 `json:"valor"`
	LinkWhatsApp   string  `json:"linkWhatsApp"`
}

// StatusNew is the pipeline stage of a freshly scraped lead.
const StatusNew = "Novo"

func toJSONLead(l *models.Lead) jsonLead {
	return jsonLead{
		ID:             parser.DocumentID(l.CompanyName, l.Territory),
		Empresa:        l.CompanyName,
		Telefone:       l.Phone,
		WhatsApp:       l.WhatsApp,
		Site:           l.Website,
		Instagram:      l.Instagram,
		GoogleMaps:     l.GoogleMaps,
		Nicho:          l.Niche,
		Territorio:     l.Territory,
		WebsiteQuality: string(l.WebsiteQuality),
		Status:         StatusNew,
		Notas:          l.Notes,
		DataContato:    l.ScrapedAt.Format(time.DateOnly),
		LinkWhatsApp:   l.WhatsAppLink(),
	}
}

// keepCRMFields carries what people edited downstream into the fresh record.
func keepCRMFields(prev, next jsonLead) jsonLead {
	next.Contato = prev.Contato
	next.Email = prev.Email
	next.Valor = prev.Valor
	if prev.Status != "" {
		next.Status = prev.Status
	}
	return next
}

// JSONSink merges leads into the JSON array read by the front-end.
type JSONSink struct {
	path string
}

// NewJSONSink returns a sink writing to path.
func NewJSONSink(path string) (*JSONSink, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &JSONSink{path: path}, nil
}

// Name identifies the sink in errors and metrics.
func (js *JSONSink) Name() string { return "json" }

// Append merges leads into the array, one object per company, last write wins.
func (js *JSONSink) Append(ctx context.Context, leads []*models.Lead) error {
	return withFileLock(ctx, js.path, func() error {
		existing, err := readJSON(js.path)
		if err != nil {
			return err
		}
		incoming := make([]jsonLead, 0, len(leads))
		for _, l := range leads {
			incoming = append(incoming, toJSONLead(l))
		}
		merged := Merge(existing, incoming, func(r jsonLead) string {
			return strings.TrimSpace(r.Empresa)
		}, keepCRMFields)

		return writeAtomic(js.path, func(f *os.File) error {
			buffer := bufio.NewWriter(f)
			encoder := json.NewEncoder(buffer)
			encoder.SetEscapeHTML(false)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(merged); err != nil {
				return fmt.Errorf("encode json: %w", err)
			}
			if err := buffer.Flush(); err != nil {
				return fmt.Errorf("flush json writer: %w", err)
			}
			return nil
		})
	})
}

// Close is a no-op; each append opens and replaces the file.
func (js *JSONSink) Close() error { return nil }

func readJSON(path string) ([]jsonLead, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read json %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []jsonLead
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse json %s: %w", path, err)
	}
	return records, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
