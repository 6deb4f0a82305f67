package deploy

import (
	"time"

	"github.com/go-go-golems/bluedex/internal/lifecycle"
)

// Status is a deployment's position in the blue/green state machine.
type Status string

const (
	StatusIdle         Status = "IDLE"
	StatusDeploying    Status = "DEPLOYING"
	StatusReadyForSwap Status = "READY_FOR_SWAP"
	StatusSwapping     Status = "SWAPPING"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
	StatusRollingBack  Status = "ROLLING_BACK"
)

// Strategy controls whether a deployment swaps automatically after
// validation (AutoSwap) or waits for an explicit promote (Safe).
type Strategy string

const (
	StrategySafe     Strategy = "SAFE"
	StrategyAutoSwap Strategy = "AUTO_SWAP"
)

// State is the computed (never persisted) view of an alias's
// blue/green deployment, derived by querying the Alias Registry and
// Index Lifecycle.
type State struct {
	Alias          string
	ActiveColor    lifecycle.Color
	ActiveIndex    string
	StagingColor   lifecycle.Color
	StagingIndex   string
	Status         Status
	LastDeployment time.Time
	Strategy       Strategy
	Error          string
}
