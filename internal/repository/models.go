package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/perf-analysis/fieldaccess/internal/layout"
	"github.com/perf-analysis/fieldaccess/internal/metadata"
	"github.com/perf-analysis/fieldaccess/internal/statistics"
)

// TypeRecord represents the type_descriptors table.
type TypeRecord struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name             string    `gorm:"column:name;type:varchar(768);uniqueIndex"`
	Size             int64     `gorm:"column:size"`
	Kind             string    `gorm:"column:kind;type:varchar(32)"`
	Fields           JSONField `gorm:"column:fields;type:json"`
	FormalParameters JSONField `gorm:"column:formal_parameters;type:json"`
	Constants        JSONField `gorm:"column:constants;type:json"`
}

// TableName returns the table name for TypeRecord.
func (TypeRecord) TableName() string {
	return "type_descriptors"
}

func newTypeRecord(t metadata.SnapshotType) (*TypeRecord, error) {
	rec := &TypeRecord{Name: t.Name, Size: t.Size, Kind: t.Kind}
	var err error
	if rec.Fields, err = marshalJSON(t.Fields); err != nil {
		return nil, err
	}
	if rec.FormalParameters, err = marshalJSON(t.FormalParameters); err != nil {
		return nil, err
	}
	if rec.Constants, err = marshalJSON(t.Constants); err != nil {
		return nil, err
	}
	return rec, nil
}

// ToSnapshot converts the row back to its serialized form.
func (r *TypeRecord) ToSnapshot() (metadata.SnapshotType, error) {
	t := metadata.SnapshotType{Name: r.Name, Size: r.Size, Kind: r.Kind}
	if err := unmarshalJSON(r.Fields, &t.Fields); err != nil {
		return t, err
	}
	if err := unmarshalJSON(r.FormalParameters, &t.FormalParameters); err != nil {
		return t, err
	}
	if err := unmarshalJSON(r.Constants, &t.Constants); err != nil {
		return t, err
	}
	return t, nil
}

// FormalParameterRecord represents the formal_parameters table.
type FormalParameterRecord struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Function   string    `gorm:"column:function;type:varchar(768);uniqueIndex"`
	Parameters JSONField `gorm:"column:parameters;type:json"`
}

// TableName returns the table name for FormalParameterRecord.
func (FormalParameterRecord) TableName() string {
	return "formal_parameters"
}

// HeapAllocSiteRecord represents the heap_alloc_sites table.
type HeapAllocSiteRecord struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Function   string `gorm:"column:function;type:varchar(760);uniqueIndex:idx_alloc_frame"`
	LineOffset int64  `gorm:"column:line_offset;uniqueIndex:idx_alloc_frame"`
	Column     int64  `gorm:"column:column_number;uniqueIndex:idx_alloc_frame"`
	TypeName   string `gorm:"column:type_name;type:varchar(1024)"`
}

// TableName returns the table name for HeapAllocSiteRecord.
func (HeapAllocSiteRecord) TableName() string {
	return "heap_alloc_sites"
}

// MetadataInfo represents the single row metadata_info table.
type MetadataInfo struct {
	ID               int64     `gorm:"column:id;primaryKey"`
	PointerWidthBits int64     `gorm:"column:pointer_width_bits"`
	ImportedAt       time.Time `gorm:"column:imported_at"`
}

// TableName returns the table name for MetadataInfo.
func (MetadataInfo) TableName() string {
	return "metadata_info"
}

// RunStatus is the lifecycle state of an analysis run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// AnalysisRun represents the analysis_runs table.
type AnalysisRun struct {
	ID               int64      `gorm:"column:id;primaryKey;autoIncrement"`
	RunID            string     `gorm:"column:run_id;type:varchar(64);uniqueIndex"`
	Status           RunStatus  `gorm:"column:status;type:varchar(16);index"`
	StatusInfo       string     `gorm:"column:status_info;type:text"`
	ProfilePath      string     `gorm:"column:profile_path;type:varchar(1024)"`
	MetadataPath     string     `gorm:"column:metadata_path;type:varchar(1024)"`
	Mode             string     `gorm:"column:mode;type:varchar(32)"`
	GranularityBytes int64      `gorm:"column:granularity_bytes"`
	Stats            JSONField  `gorm:"column:stats;type:json"`
	CreateTime       time.Time  `gorm:"column:create_time;autoCreateTime"`
	EndTime          *time.Time `gorm:"column:end_time"`
}

// TableName returns the table name for AnalysisRun.
func (AnalysisRun) TableName() string {
	return "analysis_runs"
}

// Run is an analysis run as seen by callers.
type Run struct {
	RunID            string                 `json:"run_id"`
	Status           RunStatus              `json:"status"`
	StatusInfo       string                 `json:"status_info,omitempty"`
	ProfilePath      string                 `json:"profile_path"`
	MetadataPath     string                 `json:"metadata_path,omitempty"`
	Mode             string                 `json:"mode"`
	GranularityBytes int64                  `json:"granularity_bytes"`
	Stats            *statistics.Statistics `json:"stats,omitempty"`
	CreateTime       time.Time              `json:"create_time"`
	EndTime          *time.Time             `json:"end_time,omitempty"`
}

// ToModel converts AnalysisRun to Run.
func (r *AnalysisRun) ToModel() (*Run, error) {
	run := &Run{
		RunID:            r.RunID,
		Status:           r.Status,
		StatusInfo:       r.StatusInfo,
		ProfilePath:      r.ProfilePath,
		MetadataPath:     r.MetadataPath,
		Mode:             r.Mode,
		GranularityBytes: r.GranularityBytes,
		CreateTime:       r.CreateTime,
		EndTime:          r.EndTime,
	}
	if r.Stats != nil {
		run.Stats = &statistics.Statistics{}
		if err := json.Unmarshal(r.Stats, run.Stats); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// AnalysisEntry represents the analysis_entries table: one resolved type
// tree of a run.
type AnalysisEntry struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID         string    `gorm:"column:run_id;type:varchar(64);index"`
	CallStackKey  string    `gorm:"column:callstack_key;type:text"`
	CallStack     JSONField `gorm:"column:callstack;type:json"`
	TypeName      string    `gorm:"column:type_name;type:varchar(768);index"`
	ContainerName string    `gorm:"column:container_name;type:varchar(1024)"`
	FromContainer bool      `gorm:"column:from_container"`
	SizeBytes     int64     `gorm:"column:size_bytes"`
	TotalAccesses uint64    `gorm:"column:total_accesses"`
	LLCMisses     uint64    `gorm:"column:llc_misses"`
	Layout        JSONField `gorm:"column:layout;type:json"`
}

// TableName returns the table name for AnalysisEntry.
func (AnalysisEntry) TableName() string {
	return "analysis_entries"
}

// AnalysisField represents the analysis_fields table: the counters of one
// leaf of an entry's tree.
type AnalysisField struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EntryID     int64  `gorm:"column:entry_id;index"`
	Position    int    `gorm:"column:position"`
	Path        string `gorm:"column:path;type:text"`
	OffsetBytes int64  `gorm:"column:offset_bytes"`
	SizeBytes   int64  `gorm:"column:size_bytes"`
	TypeName    string `gorm:"column:type_name;type:varchar(1024)"`
	Total       uint64 `gorm:"column:total"`
	Access      uint64 `gorm:"column:access"`
	LLCMiss     uint64 `gorm:"column:llc_miss"`
}

// TableName returns the table name for AnalysisField.
func (AnalysisField) TableName() string {
	return "analysis_fields"
}

// Entry is a persisted type tree with its leaf counters.
type Entry struct {
	ID            int64                `json:"id"`
	RunID         string               `json:"run_id"`
	CallStack     metadata.CallStack   `json:"callstack"`
	TypeName      string               `json:"type_name"`
	ContainerName string               `json:"container_name,omitempty"`
	FromContainer bool                 `json:"from_container"`
	SizeBytes     int64                `json:"size_bytes"`
	TotalAccesses uint64               `json:"total_accesses"`
	LLCMisses     uint64               `json:"llc_misses"`
	Layout        *layout.ObjectLayout `json:"layout,omitempty"`
	Fields        []Field              `json:"fields,omitempty"`
}

// Field is one leaf of a persisted entry.
type Field struct {
	Path        string `json:"path"`
	OffsetBytes int64  `json:"offset_bytes"`
	SizeBytes   int64  `json:"size_bytes"`
	TypeName    string `json:"type_name"`
	Total       uint64 `json:"total"`
	Access      uint64 `json:"access"`
	LLCMiss     uint64 `json:"llc_miss"`
}

// ToModel converts AnalysisEntry to Entry. The layout is decoded only when
// withLayout is set.
func (e *AnalysisEntry) ToModel(withLayout bool) (*Entry, error) {
	entry := &Entry{
		ID:            e.ID,
		RunID:         e.RunID,
		TypeName:      e.TypeName,
		ContainerName: e.ContainerName,
		FromContainer: e.FromContainer,
		SizeBytes:     e.SizeBytes,
		TotalAccesses: e.TotalAccesses,
		LLCMisses:     e.LLCMisses,
	}
	if err := unmarshalJSON(e.CallStack, &entry.CallStack); err != nil {
		return nil, err
	}
	if withLayout && e.Layout != nil {
		entry.Layout = &layout.ObjectLayout{}
		if err := json.Unmarshal(e.Layout, entry.Layout); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// ToModel converts AnalysisField to Field.
func (f *AnalysisField) ToModel() Field {
	return Field{
		Path:        f.Path,
		OffsetBytes: f.OffsetBytes,
		SizeBytes:   f.SizeBytes,
		TypeName:    f.TypeName,
		Total:       f.Total,
		Access:      f.Access,
		LLCMiss:     f.LLCMiss,
	}
}

func marshalJSON(v interface{}) (JSONField, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSONField(data), nil
}

func unmarshalJSON(data JSONField, v interface{}) error {
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
