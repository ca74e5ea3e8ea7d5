package runlog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Run is one pipeline execution, successful or not.
type Run struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	Scenario       string         `gorm:"index;size:255" json:"scenario"`
	Timestamp      string         `gorm:"size:32" json:"timestamp"`
	PromptHash     string         `gorm:"size:64" json:"prompt_hash"`
	ContextChunks  int            `json:"context_chunks"`
	XMLStatus      string         `gorm:"size:16" json:"xml_status"`
	Params         datatypes.JSON `json:"params"`
	AdapterEnabled bool           `json:"adapter_enabled"`
	Model          string         `gorm:"size:255" json:"model"`
	DurationMS     int64          `json:"duration_ms"`
	XMLPath        string         `json:"xml_path"`
	MetadataPath   string         `json:"metadata_path"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

func (Run) TableName() string { return "btgen_runs" }

// HashPrompt keeps the ledger free of full prompt text.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

// ParamsJSON encodes decoding parameters for the Params column.
func ParamsJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(b)
}

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects and migrates. DriverNone returns (nil, nil).
func Open(logg *logger.Logger, driver, dsn string) (*Store, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	driver = strings.ToLower(strings.TrimSpace(driver))

	var dialector gorm.Dialector
	switch driver {
	case DriverNone, "":
		return nil, nil
	case DriverSQLite:
		if dsn == "" {
			return nil, fmt.Errorf("sqlite dsn required")
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create runlog dir: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres dsn required")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown runlog driver %q", driver)
	}

	gormLog := gormLogger.New(
		gormStdLogger(),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger (%s): %w", driver, err)
	}
	return NewWithDB(logg, db)
}

// NewWithDB wraps an existing handle and migrates the runs table.
func NewWithDB(logg *logger.Logger, db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("migrate run ledger: %w", err)
	}
	return &Store{db: db, log: logg.With("service", "RunLog")}, nil
}

func (s *Store) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if len(run.Params) == 0 {
		run.Params = datatypes.JSON([]byte(`{}`))
	}
	if err := s.db.WithContext(ctx).Save(&run).Error; err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	s.log.Debug("Run recorded", "run_id", run.ID, "scenario", run.Scenario, "xml_status", run.XMLStatus)
	return nil
}

// Recent returns the newest runs first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormStdLogger() *log.Logger {
	return log.New(os.Stdout, "\r\n", log.LstdFlags)
}
