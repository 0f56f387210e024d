package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema applies every down migration in reverse and then every up
// migration, leaving an empty schema at the latest version.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	downs, err := migrationFiles(".down.sql")
	if err != nil {
		return err
	}
	ups, err := migrationFiles(".up.sql")
	if err != nil {
		return err
	}

	// golang-migrate bookkeeping would disagree with a hand-reset schema.
	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}

	for i := len(downs) - 1; i >= 0; i-- {
		if err := execMigration(ctx, pool, downs[i]); err != nil {
			return err
		}
	}
	for _, name := range ups {
		if err := execMigration(ctx, pool, name); err != nil {
			return err
		}
	}
	return nil
}

func migrationFiles(suffix string) ([]string, error) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func execMigration(ctx context.Context, pool *pgxpool.Pool, name string) error {
	sql, err := fs.ReadFile(migrations.FS, name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestPlan creates a published plan with sensible defaults.
func NewTestPlan(t testing.TB, title string) *model.HousePlan {
	t.Helper()
	seq := int(time.Now().UnixNano() % 100000)
	area := 120.0
	beds := 3
	baths := 2.0
	pro := decimal.NewFromInt(49)
	ultimate := decimal.NewFromInt(149)
	ref := model.ReferenceCode(seq, time.Now().Year())

	return &model.HousePlan{
		Title:             title,
		Slug:              UniqueSlug("plan"),
		ReferenceCode:     ref,
		PublicPlanCode:    model.DerivePublicCode(ref, 0),
		Description:       "A compact family home with an open living area.",
		ShortDescription:  "A compact family home.",
		PlanType:          model.PlanTypeFamily,
		TotalAreaM2:       &area,
		NumberOfBedrooms:  &beds,
		NumberOfBathrooms: &baths,
		PricePack1:        decimal.Zero,
		PricePack2:        &pro,
		PricePack3:        &ultimate,
		GumroadPack2URL:   "https://store.gumroad.com/l/" + UniqueSlug("pro"),
		GumroadPack3URL:   "https://store.gumroad.com/l/" + UniqueSlug("cad"),
		Price:             pro,
		IsPublished:       true,
	}
}

// NewTestMessage creates a contact message with sensible defaults.
func NewTestMessage(t testing.TB, subject string) *model.ContactMessage {
	t.Helper()
	return &model.ContactMessage{
		Name:        "Test Visitor",
		Email:       "visitor@example.com",
		Subject:     subject,
		Message:     "I would like to know more about this plan.",
		InquiryType: "plans",
		Status:      model.MessageStatusNew,
		EmailStatus: model.EmailStatusPending,
	}
}

// UniqueSlug generates a unique slug for tests.
func UniqueSlug(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
