package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/construxio/sitehub-backend/internal/data/testutil"
	types "github.com/construxio/sitehub-backend/internal/domain"
	"github.com/construxio/sitehub-backend/internal/eventstream"
	"github.com/construxio/sitehub-backend/internal/observability"
	"github.com/construxio/sitehub-backend/internal/platform/apierr"
	"github.com/construxio/sitehub-backend/internal/snapshot"
	"gorm.io/gorm"
)

func userEvent(t *testing.T, userID uuid.UUID, version int64, name string, doc types.UserSnapshot, at time.Time) eventstream.Envelope {
	t.Helper()
	env, err := eventstream.New(types.KindUser, userID, version, name, doc, eventstream.AuditDoc{
		CreatedBy:      userID,
		CreatedAt:      at,
		LastModifiedBy: userID,
		LastModifiedAt: at,
	})
	if err != nil {
		t.Fatalf("build user envelope: %v", err)
	}
	return env
}

func employeeEvent(t *testing.T, employeeID uuid.UUID, version int64, name string, doc types.EmployeeSnapshot, at time.Time) eventstream.Envelope {
	t.Helper()
	env, err := eventstream.New(types.KindEmployee, employeeID, version, name, doc, eventstream.AuditDoc{
		CreatedBy:      doc.UserID,
		CreatedAt:      at,
		LastModifiedBy: doc.UserID,
		LastModifiedAt: at,
	})
	if err != nil {
		t.Fatalf("build employee envelope: %v", err)
	}
	return env
}

func findRow(t *testing.T, tx *gorm.DB, userID uuid.UUID) *types.ParticipantRow {
	t.Helper()
	var row types.ParticipantRow
	err := tx.First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("find row: %v", err)
	}
	return &row
}

func TestParticipantProjectorMergesBothStreams(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	p := NewParticipantProjector(log, observability.Init(), nil)

	ctx := context.Background()
	uow := snapshot.NewUnitOfWork(tx)
	userID := uuid.New()
	employeeID := uuid.New()
	companyID := uuid.New()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	// Employee side arrives first; the row is created with only that side.
	err := p.ApplyEmployee(ctx, uow, employeeEvent(t, employeeID, 0, types.EventCreated, types.EmployeeSnapshot{
		UserID:      userID,
		CompanyID:   companyID,
		CompanyName: "Hochbau GmbH",
	}, base))
	if err != nil {
		t.Fatalf("apply employee: %v", err)
	}
	row := findRow(t, tx, userID)
	if row == nil || row.CompanyName != "Hochbau GmbH" || row.DisplayName != "" {
		t.Fatalf("after employee: %+v", row)
	}

	// The user side fills in its own fields without touching the other side.
	err = p.ApplyUser(ctx, uow, userEvent(t, userID, 0, types.EventCreated, types.UserSnapshot{
		FirstName: "Mara",
		LastName:  "Keller",
		Email:     "mara@example.test",
	}, base.Add(time.Minute)))
	if err != nil {
		t.Fatalf("apply user: %v", err)
	}
	row = findRow(t, tx, userID)
	if row.DisplayName != "Mara Keller" || row.CompanyName != "Hochbau GmbH" {
		t.Fatalf("after user: %+v", row)
	}
}

func TestParticipantProjectorOutOfOrderTolerance(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	p := NewParticipantProjector(log, observability.Init(), nil)

	ctx := context.Background()
	uow := snapshot.NewUnitOfWork(tx)
	userID := uuid.New()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	newer := userEvent(t, userID, 1, types.EventUpdated, types.UserSnapshot{
		FirstName: "Mara", LastName: "Keller", Email: "new@example.test",
	}, base.Add(time.Hour))
	older := userEvent(t, userID, 0, types.EventCreated, types.UserSnapshot{
		FirstName: "Mara", LastName: "K", Email: "old@example.test",
	}, base)

	if err := p.ApplyUser(ctx, uow, newer); err != nil {
		t.Fatalf("apply newer: %v", err)
	}
	if err := p.ApplyUser(ctx, uow, older); err != nil {
		t.Fatalf("apply older: %v", err)
	}

	row := findRow(t, tx, userID)
	if row.Email != "new@example.test" || row.DisplayName != "Mara Keller" {
		t.Fatalf("older fact overwrote newer one: %+v", row)
	}
}

func TestParticipantProjectorDeleteClearsSides(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	p := NewParticipantProjector(log, observability.Init(), nil)

	ctx := context.Background()
	uow := snapshot.NewUnitOfWork(tx)
	userID := uuid.New()
	employeeID := uuid.New()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(p.ApplyUser(ctx, uow, userEvent(t, userID, 0, types.EventCreated, types.UserSnapshot{
		FirstName: "Mara", LastName: "Keller", Email: "mara@example.test",
	}, base)))
	must(p.ApplyEmployee(ctx, uow, employeeEvent(t, employeeID, 0, types.EventCreated, types.EmployeeSnapshot{
		UserID: userID, CompanyID: uuid.New(), CompanyName: "Hochbau GmbH",
	}, base)))

	// Employee tombstone clears only the employee side.
	must(p.ApplyEmployee(ctx, uow, eventstream.NewTombstone(types.KindEmployee, employeeID, 1)))
	row := findRow(t, tx, userID)
	if row == nil || row.CompanyID != nil || row.CompanyName != "" {
		t.Fatalf("employee side not cleared: %+v", row)
	}
	if row.DisplayName != "Mara Keller" {
		t.Fatalf("user side lost: %+v", row)
	}

	// Deleting the user side empties the row, which removes it entirely.
	must(p.ApplyUser(ctx, uow, eventstream.NewTombstone(types.KindUser, userID, 1)))
	if got := findRow(t, tx, userID); got != nil {
		t.Fatalf("row survived both deletes: %+v", got)
	}
}

func TestParticipantProjectorIgnoreList(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	log := testutil.Logger(t)
	ignored := uuid.New()
	p := NewParticipantProjector(log, observability.Init(), map[uuid.UUID]struct{}{ignored: {}})

	ctx := context.Background()
	uow := snapshot.NewUnitOfWork(tx)

	err := p.ApplyUser(ctx, uow, userEvent(t, ignored, 0, types.EventCreated, types.UserSnapshot{
		FirstName: "Announcement", LastName: "Bot",
	}, time.Now().UTC()))
	if err != nil {
		t.Fatalf("apply ignored: %v", err)
	}
	if row := findRow(t, tx, ignored); row != nil {
		t.Fatalf("ignored user produced a row: %+v", row)
	}

	if _, err := p.Find(ctx, tx, ignored); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}
