// Package models defines GORM data models for GridPilot.
package models

// WorkUnit is one unit of dispatched work, correlated from the workunit and
// result sections of an upstream scheduler reply. The (ResultName, Project)
// pair is unique; a second observation of the same key never rewrites the
// row, only Status is mutable afterwards.
type WorkUnit struct {
	// CPID is the stable per-device correlation id reported by the client.
	CPID       string `gorm:"column:cpid;index;not null" json:"cpid"`
	ResultName string `gorm:"primaryKey" json:"result_name"`
	// Name is the workunit name; ResultName is the per-replica task name.
	Name    string `gorm:"index" json:"name"`
	Project string `gorm:"primaryKey" json:"project"`
	Status  int64  `json:"status"`
	AppName string `json:"app_name"`

	// Resource estimates/bounds from the upstream workunit descriptor.
	// Upstream replies may omit any of them; absent values are stored as 0.
	RscFpopsEst    float64 `json:"rsc_fpops_est"`    // estimated FLOPs
	RscFpopsBound  float64 `json:"rsc_fpops_bound"`  // max permitted FLOPs
	RscMemoryBound float64 `json:"rsc_memory_bound"` // max memory, bytes
	RscDiskBound   float64 `json:"rsc_disk_bound"`   // max disk, bytes

	Platform   string `json:"platform"`
	VersionNum int64  `json:"version_num"`
	PlanClass  string `json:"plan_class"`

	// Timestamp is the dispatch time, seconds since epoch.
	Timestamp int64 `gorm:"index" json:"timestamp"`
}

// TableName keeps the historical table name.
func (WorkUnit) TableName() string { return "workunit" }

// AppVersion is a descriptive catalogue entry correlated from the app and
// app_version sections of an upstream reply. Insert-once, immutable.
type AppVersion struct {
	Project          string `gorm:"primaryKey" json:"project"`
	AppName          string `gorm:"primaryKey" json:"app_name"`
	UserFriendlyName string `json:"user_friendly_name"`
	Version          int64  `gorm:"primaryKey" json:"version"`
	Platform         string `gorm:"primaryKey" json:"platform"`
	PlanClass        string `gorm:"primaryKey" json:"plan_class"`
}

func (AppVersion) TableName() string { return "app_version" }
