package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"leadgen-engine/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordPostingIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := domain.Posting{
		Source:       "finn",
		ExternalID:   "12345",
		Title:        "Utvikler",
		CompanyName:  "Acme AS",
		URL:          "https://www.finn.no/job/ad/12345",
		DiscoveredAt: time.Now().UTC(),
	}

	inserted, id1, err := db.RecordPosting(ctx, p)
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if !inserted || id1 == 0 {
		t.Fatalf("first record: inserted=%v id=%d", inserted, id1)
	}

	inserted, id2, err := db.RecordPosting(ctx, p)
	if err != nil {
		t.Fatalf("second record: %v", err)
	}
	if inserted {
		t.Fatal("second record reported inserted")
	}
	if id2 != id1 {
		t.Fatalf("second record id = %d, want %d", id2, id1)
	}

	exists, err := db.PostingExists(ctx, "finn", "12345")
	if err != nil || !exists {
		t.Fatalf("PostingExists = %v, %v; want true, nil", exists, err)
	}
	exists, err = db.PostingExists(ctx, "nav", "12345")
	if err != nil || exists {
		t.Fatalf("PostingExists other source = %v, %v; want false, nil", exists, err)
	}
}

func TestSamePostingIDDifferentSourcesAreDistinct(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, src := range []string{"finn", "nav"} {
		inserted, _, err := db.RecordPosting(ctx, domain.Posting{Source: src, ExternalID: "99", CompanyName: "X"})
		if err != nil || !inserted {
			t.Fatalf("record %s: inserted=%v err=%v", src, inserted, err)
		}
	}
}

func TestUpdatePostingEnrichment(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, id, err := db.RecordPosting(ctx, domain.Posting{Source: "finn", ExternalID: "1", CompanyName: "Acme AS"})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.UpdatePostingEnrichment(ctx, id, "acme.no", "987654321"); err != nil {
		t.Fatalf("UpdatePostingEnrichment: %v", err)
	}

	var dom, org string
	err = db.Pool.QueryRowContext(ctx,
		`SELECT company_domain, org_number FROM postings WHERE id = ?;`, id,
	).Scan(&dom, &org)
	if err != nil {
		t.Fatal(err)
	}
	if dom != "acme.no" || org != "987654321" {
		t.Fatalf("got %q %q, want acme.no 987654321", dom, org)
	}
}

func TestRecordProspectNormalizesAndDedups(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, postingID, err := db.RecordPosting(ctx, domain.Posting{Source: "finn", ExternalID: "1", CompanyName: "Acme AS"})
	if err != nil {
		t.Fatal(err)
	}

	inserted, err := db.RecordProspect(ctx, postingID, domain.Prospect{
		Email:        "  Kari.Nordmann@Acme.NO ",
		FullName:     "Kari Nordmann",
		Verification: domain.VerifyValid,
	})
	if err != nil || !inserted {
		t.Fatalf("first prospect: inserted=%v err=%v", inserted, err)
	}

	// Same address, different casing: already in the ledger.
	exists, err := db.ContactExists(ctx, "KARI.NORDMANN@ACME.NO")
	if err != nil || !exists {
		t.Fatalf("ContactExists = %v, %v; want true, nil", exists, err)
	}

	inserted, err = db.RecordProspect(ctx, postingID, domain.Prospect{Email: "kari.nordmann@acme.no"})
	if err != nil {
		t.Fatalf("duplicate prospect errored: %v", err)
	}
	if inserted {
		t.Fatal("duplicate prospect reported inserted")
	}
}

func TestUpsertCompanyRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	co := domain.Company{
		OrgNumber:     "987654321",
		Name:          "Acme AS",
		Website:       "https://acme.no",
		EmployeeCount: 12,
		LegalForm:     "AS",
		Officers: []domain.Officer{
			{Name: "Ola Nordmann", RoleCode: "DAGL", RoleDesc: "Daglig leder"},
		},
	}
	if err := db.UpsertCompany(ctx, co); err != nil {
		t.Fatalf("UpsertCompany: %v", err)
	}

	// Second upsert refreshes instead of erroring.
	co.EmployeeCount = 15
	if err := db.UpsertCompany(ctx, co); err != nil {
		t.Fatalf("second UpsertCompany: %v", err)
	}

	got, err := db.CompanyByName(ctx, "acme as")
	if err != nil {
		t.Fatalf("CompanyByName: %v", err)
	}
	if got == nil {
		t.Fatal("CompanyByName returned nil")
	}
	if got.EmployeeCount != 15 {
		t.Fatalf("employee count = %d, want 15", got.EmployeeCount)
	}
	if len(got.Officers) != 1 || got.Officers[0].RoleCode != "DAGL" {
		t.Fatalf("officers = %+v", got.Officers)
	}

	miss, err := db.CompanyByName(ctx, "nobody")
	if err != nil || miss != nil {
		t.Fatalf("miss = %+v, %v; want nil, nil", miss, err)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	runID, err := db.InsertRun(ctx)
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}

	stats := domain.NewRunStats()
	stats.PostingsScraped = 7
	stats.PostingsNew = 3
	stats.ContactsStored = 2
	if err := db.FinishRun(ctx, runID, "completed", stats, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	var status string
	var scraped int
	err = db.Pool.QueryRowContext(ctx,
		`SELECT status, postings_scraped FROM pipeline_runs WHERE id = ?;`, runID,
	).Scan(&status, &scraped)
	if err != nil {
		t.Fatal(err)
	}
	if status != "completed" || scraped != 7 {
		t.Fatalf("got %q %d, want completed 7", status, scraped)
	}
}
