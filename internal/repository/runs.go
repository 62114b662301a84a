package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perf-analysis/fieldaccess/internal/histogram"
	"github.com/perf-analysis/fieldaccess/internal/statistics"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

const (
	entryBatchSize   = 100
	defaultListLimit = 100
)

// GormRunRepository implements RunRepository using GORM.
type GormRunRepository struct {
	db *gorm.DB
}

// NewGormRunRepository creates a new GormRunRepository.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// CreateRun inserts run with status running and fills in its id and
// creation time.
func (r *GormRunRepository) CreateRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.InvalidArgumentf("run is nil")
	}
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	run.Status = RunStatusRunning

	rec := &AnalysisRun{
		RunID:            run.RunID,
		Status:           run.Status,
		ProfilePath:      run.ProfilePath,
		MetadataPath:     run.MetadataPath,
		Mode:             run.Mode,
		GranularityBytes: run.GranularityBytes,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return errors.Wrap(errors.CodeDatabaseError, "create run", err)
	}
	run.CreateTime = rec.CreateTime
	return nil
}

// SaveResults stores the entries of store under runID. Entries and their
// fields are written in one transaction.
func (r *GormRunRepository) SaveResults(ctx context.Context, runID string, store *histogram.Store) error {
	if store == nil {
		return errors.InvalidArgumentf("histogram store is nil")
	}
	if _, err := r.GetRun(ctx, runID); err != nil {
		return err
	}

	entries := store.Entries()
	recs := make([]*AnalysisEntry, 0, len(entries))
	for _, e := range entries {
		rec, err := newEntryRecord(runID, e)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, "encode entry "+e.CallStack.Key(), err)
		}
		recs = append(recs, rec)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(recs) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(recs, entryBatchSize).Error; err != nil {
			return err
		}
		var fields []*AnalysisField
		for i, e := range entries {
			fields = append(fields, fieldRecords(recs[i].ID, e)...)
		}
		if len(fields) == 0 {
			return nil
		}
		return tx.CreateInBatches(fields, entryBatchSize).Error
	})
	if err != nil {
		return errors.Wrap(errors.CodeDatabaseError, "save run results", err)
	}
	return nil
}

func newEntryRecord(runID string, e histogram.Entry) (*AnalysisEntry, error) {
	root := e.Tree.Root()
	callstack, err := json.Marshal(e.CallStack)
	if err != nil {
		return nil, err
	}
	layoutJSON, err := json.Marshal(e.Tree.ToLayout())
	if err != nil {
		return nil, err
	}
	return &AnalysisEntry{
		RunID:         runID,
		CallStackKey:  e.CallStack.Key(),
		CallStack:     callstack,
		TypeName:      e.Tree.Name(),
		ContainerName: e.Tree.ContainerName(),
		FromContainer: e.Tree.FromContainer(),
		SizeBytes:     root.FullSizeBytes(),
		TotalAccesses: root.Counters.Access,
		LLCMisses:     root.Counters.LLCMiss,
		Layout:        layoutJSON,
	}, nil
}

func fieldRecords(entryID int64, e histogram.Entry) []*AnalysisField {
	leaves := e.Tree.Leaves()
	out := make([]*AnalysisField, 0, len(leaves))
	for i, leaf := range leaves {
		n := leaf.Node
		out = append(out, &AnalysisField{
			EntryID:     entryID,
			Position:    i,
			Path:        strings.Join(leaf.Path, ";"),
			OffsetBytes: n.GlobalOffsetBytes(),
			SizeBytes:   n.FullSizeBytes(),
			TypeName:    n.TypeName,
			Total:       n.Counters.Total,
			Access:      n.Counters.Access,
			LLCMiss:     n.Counters.LLCMiss,
		})
	}
	return out
}

// FinishRun records the outcome of a run.
func (r *GormRunRepository) FinishRun(ctx context.Context, runID string, status RunStatus, stats *statistics.Statistics, info string) error {
	if status != RunStatusCompleted && status != RunStatusFailed {
		return errors.InvalidArgumentf("run cannot finish with status %q", status)
	}
	updates := map[string]interface{}{
		"status":      status,
		"status_info": info,
		"end_time":    time.Now(),
	}
	if stats != nil {
		data, err := json.Marshal(stats)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, "encode statistics", err)
		}
		updates["stats"] = JSONField(data)
	}

	result := r.db.WithContext(ctx).
		Model(&AnalysisRun{}).
		Where("run_id = ?", runID).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrap(errors.CodeDatabaseError, "finish run", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NotFoundf("run not found: %s", runID)
	}
	return nil
}

// GetRun retrieves a run by its id.
func (r *GormRunRepository) GetRun(ctx context.Context, runID string) (*Run, error) {
	var rec AnalysisRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&rec).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("run not found: %s", runID)
		}
		return nil, errors.Wrap(errors.CodeDatabaseError, "get run", err)
	}
	run, err := rec.ToModel()
	if err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "decode run "+runID, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (r *GormRunRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var recs []AnalysisRun
	err := r.db.WithContext(ctx).Order("create_time DESC").Order("id DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeDatabaseError, "list runs", err)
	}
	runs := make([]*Run, 0, len(recs))
	for i := range recs {
		run, err := recs[i].ToModel()
		if err != nil {
			return nil, errors.Wrap(errors.CodeParseError, "decode run "+recs[i].RunID, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ListEntries returns the entries of a run, most accessed first.
func (r *GormRunRepository) ListEntries(ctx context.Context, runID string, filter EntryFilter) ([]*Entry, error) {
	query := r.db.WithContext(ctx).
		Omit("layout").
		Where("run_id = ?", runID)
	if filter.TypePrefix != "" {
		query = query.Where("type_name LIKE ? ESCAPE '!'", escapeLike(filter.TypePrefix)+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var recs []AnalysisEntry
	if err := query.Order("total_accesses DESC").Order("id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(errors.CodeDatabaseError, "list entries", err)
	}
	entries := make([]*Entry, 0, len(recs))
	for i := range recs {
		e, err := recs[i].ToModel(false)
		if err != nil {
			return nil, errors.Wrap(errors.CodeParseError, "decode entry", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetEntry returns an entry with its layout and leaf fields.
func (r *GormRunRepository) GetEntry(ctx context.Context, runID string, id int64) (*Entry, error) {
	db := r.db.WithContext(ctx)

	var rec AnalysisEntry
	err := db.Where("run_id = ? AND id = ?", runID, id).First(&rec).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFoundf("entry %d not found in run %s", id, runID)
		}
		return nil, errors.Wrap(errors.CodeDatabaseError, "get entry", err)
	}
	entry, err := rec.ToModel(true)
	if err != nil {
		return nil, errors.Wrap(errors.CodeParseError, "decode entry", err)
	}

	var fields []AnalysisField
	if err := db.Where("entry_id = ?", id).Order("position").Find(&fields).Error; err != nil {
		return nil, errors.Wrap(errors.CodeDatabaseError, "get entry fields", err)
	}
	for i := range fields {
		entry.Fields = append(entry.Fields, fields[i].ToModel())
	}
	return entry, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
