package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kerbaras/mangashelf/pkg/data"
	"github.com/kerbaras/mangashelf/pkg/logging"
)

var errUnchanged = errors.New("unchanged")

// ReadStatus is the derived read state of a chapter list.
type ReadStatus struct {
	Total int
	Read  int
}

func (s ReadStatus) Unread() int { return s.Total - s.Read }

// Started reports whether at least one chapter was read.
func (s ReadStatus) Started() bool { return s.Read > 0 }

// Completed reports whether every chapter was read.
func (s ReadStatus) Completed() bool { return s.Total > 0 && s.Read == s.Total }

// ReadHistory is the set of chapter ids the user has opened. Entries are only
// added, except by ClearAll.
type ReadHistory struct {
	store  data.KeyValueStore
	logger *slog.Logger
}

func NewReadHistory(store data.KeyValueStore, logger *slog.Logger) *ReadHistory {
	return &ReadHistory{store: store, logger: logging.NewComponentLogger(logger, "read_history")}
}

// MarkAsRead adds chapterID to the set. Marking twice is a no-op.
func (h *ReadHistory) MarkAsRead(ctx context.Context, chapterID string) error {
	if strings.TrimSpace(chapterID) == "" {
		h.logger.Warn("ignoring mark as read without chapter id",
			logging.String(logging.FieldEventType, "read_history_invalid"))
		return nil
	}
	err := data.UpdateJSON(ctx, h.store, data.KeyReadChapters, func(ids *[]string) error {
		if slices.Contains(*ids, chapterID) {
			return errUnchanged
		}
		*ids = append(*ids, chapterID)
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark chapter as read: %w", err)
	}
	h.logger.Debug("chapter marked as read", logging.String(logging.FieldChapterID, chapterID))
	return nil
}

func (h *ReadHistory) HasBeenRead(ctx context.Context, chapterID string) (bool, error) {
	ids, err := h.GetAll(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, chapterID), nil
}

// GetAll returns the read chapter ids in the order they were first read.
func (h *ReadHistory) GetAll(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := data.GetJSON(ctx, h.store, data.KeyReadChapters, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetForManga returns the members of allChapterIDs that have been read, in
// the order of allChapterIDs. The set is global, so mangaID only labels logs.
func (h *ReadHistory) GetForManga(ctx context.Context, mangaID string, allChapterIDs []string) ([]string, error) {
	read, err := h.readSet(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(allChapterIDs))
	for _, id := range allChapterIDs {
		if _, ok := read[id]; ok {
			out = append(out, id)
		}
	}
	h.logger.Debug("computed read chapters",
		logging.String(logging.FieldMangaID, mangaID),
		logging.Int("read", len(out)),
		logging.Int("total", len(allChapterIDs)))
	return out, nil
}

// Status derives read counters for a chapter list. Duplicate ids count once.
func (h *ReadHistory) Status(ctx context.Context, allChapterIDs []string) (ReadStatus, error) {
	read, err := h.readSet(ctx)
	if err != nil {
		return ReadStatus{}, err
	}
	seen := make(map[string]struct{}, len(allChapterIDs))
	var status ReadStatus
	for _, id := range allChapterIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		status.Total++
		if _, ok := read[id]; ok {
			status.Read++
		}
	}
	return status, nil
}

func (h *ReadHistory) ClearAll(ctx context.Context) error {
	if err := h.store.Remove(ctx, data.KeyReadChapters); err != nil {
		return fmt.Errorf("failed to clear read history: %w", err)
	}
	h.logger.Info("cleared read history")
	return nil
}

func (h *ReadHistory) readSet(ctx context.Context) (map[string]struct{}, error) {
	ids, err := h.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
