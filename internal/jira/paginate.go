package jira

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kiracore/leadcycle/internal/ticket"
)

// DefaultPageSize is the number of records requested per page
const DefaultPageSize = 100

const maxLoggedKeys = 10

// Searcher runs a single search request. *Client implements it.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchPage, error)
}

// FetchOptions tunes FetchAll
type FetchOptions struct {
	PageSize int
	Fields   []string
	Logger   *slog.Logger
}

// FetchAll retrieves every ticket matching jql. It first asks for the total
// count, then reads exactly ceil(total/pageSize) pages in order. Any
// inconsistency between pages and the reported total aborts the run with a
// *RetrievalError; no partial result is returned.
func FetchAll(ctx context.Context, s Searcher, jql string, opts FetchOptions) ([]ticket.Ticket, error) {
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	count, err := s.Search(ctx, SearchRequest{JQL: jql, MaxResults: 0})
	if err != nil {
		return nil, retrievalErr("count", err)
	}
	if count == nil || count.Total < 0 {
		return nil, &RetrievalError{Op: "count", Err: ErrMissingTotal}
	}

	total := count.Total
	pages := (total + size - 1) / size
	log.Info("fetching tickets", "total", total, "pages", pages, "page_size", size)

	tickets := make([]ticket.Ticket, 0, total)
	seen := make(map[string]struct{}, total)
	malformed := 0
	var truncated []string

	for i := 0; i < pages; i++ {
		op := fmt.Sprintf("page %d/%d", i+1, pages)
		req := SearchRequest{
			JQL:        jql,
			StartAt:    i * size,
			MaxResults: size,
			Fields:     opts.Fields,
			Expand:     []string{"changelog"},
		}

		page, err := s.Search(ctx, req)
		if err != nil {
			return nil, retrievalErr(op, err)
		}
		if page == nil || len(page.Tickets) == 0 {
			return nil, &RetrievalError{Op: op, Err: fmt.Errorf("%w at offset %d of %d", ErrShortPage, req.StartAt, total)}
		}
		log.Debug("fetched page", "page", i+1, "start_at", req.StartAt, "records", len(page.Tickets))

		for _, t := range page.Tickets {
			if _, dup := seen[t.Key]; dup {
				return nil, &RetrievalError{Op: op, Err: fmt.Errorf("%w: %s", ErrDuplicateKey, t.Key)}
			}
			seen[t.Key] = struct{}{}
			if err := t.CheckHistory(); errors.Is(err, ticket.ErrMalformedHistory) {
				malformed++
			}
			if t.HistoryTruncated {
				truncated = append(truncated, t.Key)
			}
			tickets = append(tickets, t)
		}
	}

	if len(tickets) != total {
		return nil, &RetrievalError{Op: "assemble", Err: fmt.Errorf("%w: got %d, expected %d", ErrCountMismatch, len(tickets), total)}
	}
	if malformed > 0 {
		log.Warn("tickets returned without change history", "count", malformed)
	}
	if len(truncated) > 0 {
		keys := truncated
		if len(keys) > maxLoggedKeys {
			keys = keys[:maxLoggedKeys]
		}
		log.Warn("change history truncated, latest transitions may be missing",
			"count", len(truncated),
			"keys", strings.Join(keys, ","))
	}

	return tickets, nil
}
