package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/pkg/errors"
)

const importBatchSize = 200

// GormMetadataRepository implements MetadataRepository using GORM.
type GormMetadataRepository struct {
	db *gorm.DB
}

// NewGormMetadataRepository creates a new GormMetadataRepository.
func NewGormMetadataRepository(db *gorm.DB) *GormMetadataRepository {
	return &GormMetadataRepository{db: db}
}

// ImportSnapshot upserts the snapshot in one transaction.
func (r *GormMetadataRepository) ImportSnapshot(ctx context.Context, snap *metadata.Snapshot) error {
	if snap == nil {
		return errors.InvalidArgumentf("snapshot is nil")
	}

	types := make([]*TypeRecord, 0, len(snap.Types))
	for _, t := range snap.Types {
		if t.Name == "" {
			return errors.InvalidArgumentf("snapshot type without a name")
		}
		if _, err := metadata.ParseDataKind(t.Kind); err != nil {
			return errors.InvalidArgumentf("type %q: %v", t.Name, err)
		}
		rec, err := newTypeRecord(t)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, "encode type "+t.Name, err)
		}
		types = append(types, rec)
	}

	params := make([]*FormalParameterRecord, 0, len(snap.FormalParameters))
	for _, p := range snap.FormalParameters {
		data, err := marshalJSON(p.Parameters)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, "encode parameters of "+p.Function, err)
		}
		params = append(params, &FormalParameterRecord{Function: p.Function, Parameters: data})
	}

	sites := make([]*HeapAllocSiteRecord, 0, len(snap.HeapAllocSites))
	for _, s := range snap.HeapAllocSites {
		sites = append(sites, &HeapAllocSiteRecord{
			Function:   s.Function,
			LineOffset: s.LineOffset,
			Column:     s.Column,
			TypeName:   s.Type,
		})
	}

	pointerBits := snap.PointerWidthBits
	if pointerBits <= 0 {
		pointerBits = metadata.DefaultPointerWidthBits
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(types) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"size", "kind", "fields", "formal_parameters", "constants"}),
			}).CreateInBatches(types, importBatchSize).Error
			if err != nil {
				return err
			}
		}
		if len(params) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "function"}},
				DoUpdates: clause.AssignmentColumns([]string{"parameters"}),
			}).CreateInBatches(params, importBatchSize).Error
			if err != nil {
				return err
			}
		}
		if len(sites) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "function"}, {Name: "line_offset"}, {Name: "column_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"type_name"}),
			}).CreateInBatches(sites, importBatchSize).Error
			if err != nil {
				return err
			}
		}
		return tx.Save(&MetadataInfo{ID: 1, PointerWidthBits: pointerBits, ImportedAt: time.Now()}).Error
	})
	if err != nil {
		return errors.Wrap(errors.CodeDatabaseError, "import metadata snapshot", err)
	}
	return nil
}

// ExportSnapshot reads all stored metadata.
func (r *GormMetadataRepository) ExportSnapshot(ctx context.Context) (*metadata.Snapshot, error) {
	db := r.db.WithContext(ctx)
	snap := &metadata.Snapshot{PointerWidthBits: metadata.DefaultPointerWidthBits}

	var info MetadataInfo
	err := db.Where("id = ?", 1).Limit(1).Find(&info).Error
	if err != nil {
		return nil, errors.Wrap(errors.CodeDatabaseError, "query metadata info", err)
	}
	if info.PointerWidthBits > 0 {
		snap.PointerWidthBits = info.PointerWidthBits
	}

	var types []TypeRecord
	if err := db.Order("name").Find(&types).Error; err != nil {
		return nil, errors.Wrap(errors.CodeDatabaseError, "query types", err)
	}
	for i := range types {
		t, err := types[i].ToSnapshot()
		if err != nil {
			return nil, errors.Wrap(errors.CodeParseError, "decode type "+types[i].Name, err)
		}
		snap.Types = append(snap.Types, t)
	}

	var params []FormalParameterRecord
	if err := db.Order("function").Find(&params).Error; err != nil {
		return nil, errors.Wrap(errors.CodeDatabaseError, "query formal parameters", err)
	}
	for _, p := range params {
		var names []string
		if err := unmarshalJSON(p.Parameters, &names); err != nil {
			return nil, errors.Wrap(errors.CodeParseError, "decode parameters of "+p.Function, err)
		}
		snap.FormalParameters = append(snap.FormalParameters, metadata.SnapshotParameters{Function: p.Function, Parameters: names})
	}

	var sites []HeapAllocSiteRecord
	if err := db.Order("function").Order("line_offset").Order("column_number").Find(&sites).Error; err != nil {
		return nil, errors.Wrap(errors.CodeDatabaseError, "query heap alloc sites", err)
	}
	for _, s := range sites {
		snap.HeapAllocSites = append(snap.HeapAllocSites, metadata.SnapshotAllocSite{
			Function: s.Function, LineOffset: s.LineOffset, Column: s.Column, Type: s.TypeName,
		})
	}
	return snap, nil
}

// LoadStore reads the stored metadata into memory.
func (r *GormMetadataRepository) LoadStore(ctx context.Context) (*metadata.MemoryStore, error) {
	snap, err := r.ExportSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ToStore()
}
