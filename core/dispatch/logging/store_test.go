package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T, name string) LogStore {
	t.Helper()
	dir := t.TempDir()
	switch name {
	case "jsonl":
		s, err := NewJSONLStore(filepath.Join(dir, "outcomes.jsonl"))
		if err != nil {
			t.Fatalf("jsonl store: %v", err)
		}
		return s
	case "sqlite":
		s, err := NewSQLiteStore(filepath.Join(dir, "outcomes.db"))
		if err != nil {
			t.Fatalf("sqlite store: %v", err)
		}
		return s
	}
	t.Fatalf("unknown backend %s", name)
	return nil
}

func TestLogStore_AppendQuery(t *testing.T) {
	for _, backend := range []string{"jsonl", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			s := testStore(t, backend)
			defer func() { _ = s.Close() }()
			ctx := context.Background()
			base := time.Now().Truncate(time.Second)
			recs := []LogRecord{
				{Timestamp: base, OrderID: "o1", ClientID: "c1", Outcome: OutcomeAccepted, DriverID: "d1", CandidatesTried: 2},
				{Timestamp: base.Add(time.Minute), OrderID: "o2", ClientID: "c2", Outcome: OutcomeExhausted, CandidatesTried: 3},
				{Timestamp: base.Add(2 * time.Minute), OrderID: "o3", ClientID: "c1", Outcome: OutcomeRecovered, DriverID: "d2"},
			}
			for _, r := range recs {
				if err := s.Append(ctx, r); err != nil {
					t.Fatalf("append: %v", err)
				}
			}

			all, err := s.Query(ctx, LogQuery{})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("expected 3 records, got %d", len(all))
			}

			byClient, err := s.Query(ctx, LogQuery{ClientID: "c1"})
			if err != nil {
				t.Fatalf("query client: %v", err)
			}
			if len(byClient) != 2 {
				t.Fatalf("expected 2 records for c1, got %d", len(byClient))
			}

			byOutcome, err := s.Query(ctx, LogQuery{Outcome: OutcomeExhausted})
			if err != nil {
				t.Fatalf("query outcome: %v", err)
			}
			if len(byOutcome) != 1 || byOutcome[0].OrderID != "o2" {
				t.Fatalf("unexpected outcome query result: %#v", byOutcome)
			}

			windowed, err := s.Query(ctx, LogQuery{Start: base.Add(30 * time.Second)})
			if err != nil {
				t.Fatalf("query window: %v", err)
			}
			if len(windowed) != 2 {
				t.Fatalf("expected 2 records after start, got %d", len(windowed))
			}
		})
	}
}
