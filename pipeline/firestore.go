package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/aluiziolira/leadscout/models"
	"github.com/aluiziolira/leadscout/parser"
)

// FirestoreSink upserts leads into a Firestore collection, one document per
// company and territory.
type FirestoreSink struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreSink connects with the service-account key at credentialsFile.
func NewFirestoreSink(ctx context.Context, projectID, collection, credentialsFile string) (*FirestoreSink, error) {
	if _, err := os.Stat(credentialsFile); err != nil {
		return nil, fmt.Errorf("firestore credentials %s: %w", credentialsFile, err)
	}
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreSink{client: client, collection: collection}, nil
}

// Name identifies the sink in errors and metrics.
func (fs *FirestoreSink) Name() string { return "firestore" }

// Append merge-sets every lead. Fields the front-end owns (stage, contact
// name, value) are left untouched on existing documents.
func (fs *FirestoreSink) Append(ctx context.Context, leads []*models.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	col := fs.client.Collection(fs.collection)
	bw := fs.client.BulkWriter(ctx)

	jobs := make([]*firestore.BulkWriterJob, 0, len(leads))
	for _, l := range leads {
		id, doc := firestoreDocument(l)
		job, err := bw.Set(col.Doc(id), doc, firestore.MergeAll)
		if err != nil {
			bw.End()
			return fmt.Errorf("queue %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	var errs []error
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			errs = append(errs, fmt.Errorf("write %q: %w", leads[i].CompanyName, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases the client.
func (fs *FirestoreSink) Close() error {
	return fs.client.Close()
}

func firestoreDocument(l *models.Lead) (string, map[string]interface{}) {
	id := parser.DocumentID(l.CompanyName, l.Territory)
	return id, map[string]interface{}{
		"id":             id,
		"companyName":    l.CompanyName,
		"niche":          l.Niche,
		"territory":      l.Territory,
		"phone":          l.Phone,
		"whatsapp":       l.WhatsApp,
		"website":        l.Website,
		"instagram":      l.Instagram,
		"googleMaps":     l.GoogleMaps,
		"websiteQuality": string(l.WebsiteQuality),
		"notes":          l.Notes,
		"linkWhatsApp":   l.WhatsAppLink(),
		"source":         "scraper",
		"updatedAt":      firestore.ServerTimestamp,
	}
}
