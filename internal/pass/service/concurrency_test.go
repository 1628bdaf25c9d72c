package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/internal/clock"
	"github.com/studiokit/kassza/internal/config"
	"github.com/studiokit/kassza/internal/events"
	eventsdomain "github.com/studiokit/kassza/internal/events/domain"
	memberdomain "github.com/studiokit/kassza/internal/member/domain"
	memberrepository "github.com/studiokit/kassza/internal/member/repository"
	passdomain "github.com/studiokit/kassza/internal/pass/domain"
	passrepository "github.com/studiokit/kassza/internal/pass/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// The last credit on a pass must be spendable exactly once. Two racing
// deductions settle as one success and one policy violation, with a
// single journal row behind them.
func TestDeductCreditConcurrent(t *testing.T) {
	node := mustNode(t)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	_ = db.Exec("PRAGMA journal_mode = WAL").Error

	if err := db.AutoMigrate(
		&passdomain.Pass{},
		&passdomain.PassUsage{},
		&memberdomain.Member{},
		&eventsdomain.StudioEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc := New(Params{
		Config:     config.Config{TechnicalGuestID: 1, DefaultCurrency: "HUF"},
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.SystemClock{},
		Repo:       passrepository.Provide(),
		MemberRepo: memberrepository.Provide(),
		Events:     events.NewOutboxPublisher(db, node),
	})

	ctx := context.Background()
	memberID := node.Generate()
	now := time.Now().UTC()
	if err := db.Create(&memberdomain.Member{
		ID:        memberID,
		Name:      "Racing Member",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}

	pass, err := svc.Create(ctx, passdomain.CreatePassRequest{
		MemberID:     memberID.String(),
		TotalCredits: 1,
	})
	if err != nil {
		t.Fatalf("create pass: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DeductCredit(ctx, passdomain.DeductCreditRequest{
				MemberID: memberID.String(),
				Reason:   "attendance",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var deducted, refused int
	for err := range results {
		switch {
		case err == nil:
			deducted++
		case errors.Is(err, passdomain.ErrPolicyViolation):
			refused++
		default:
			t.Fatalf("deduct concurrent: %v", err)
		}
	}
	if deducted != 1 || refused != 1 {
		t.Fatalf("expected one deduction and one violation, got deducted=%d refused=%d", deducted, refused)
	}

	var left int
	if err := db.Raw(`SELECT credits_left FROM passes WHERE id = ?`, pass.ID).Scan(&left).Error; err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if left != 0 {
		t.Fatalf("expected 0 credits left, got %d", left)
	}

	var usages int
	if err := db.Raw(`SELECT COUNT(1) FROM pass_usages WHERE direction = 'deduct'`).Scan(&usages).Error; err != nil {
		t.Fatalf("count usages: %v", err)
	}
	if usages != 1 {
		t.Fatalf("expected 1 deduct journal row, got %d", usages)
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
