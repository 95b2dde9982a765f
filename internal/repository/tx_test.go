package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

// recordingTx embeds pgx.Tx for the interface and records the outcome calls.
// Anything beyond Commit/Rollback would panic through the nil embed, which is
// what we want: InTx must touch nothing else.
type recordingTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *recordingTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *recordingTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *recordingTx
	beginErr error
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

func TestInTxCommitsOnSuccess(t *testing.T) {
	tx := &recordingTx{}
	m := &TxManager{pool: &fakeBeginner{tx: tx}}

	ran := false
	err := m.InTx(context.Background(), func(pgx.Tx) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if !ran {
		t.Error("unit of work did not run")
	}
	if !tx.committed {
		t.Error("successful unit must commit")
	}
	if tx.rolledBack {
		t.Error("successful unit must not roll back")
	}
}

func TestInTxRollsBackWhenUnitFails(t *testing.T) {
	tx := &recordingTx{}
	m := &TxManager{pool: &fakeBeginner{tx: tx}}

	boom := errors.New("task delete failed")
	err := m.InTx(context.Background(), func(pgx.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the unit's error", err)
	}
	if tx.committed {
		t.Error("failing unit must not commit")
	}
	if !tx.rolledBack {
		t.Error("failing unit must roll the whole transaction back")
	}
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	tx := &recordingTx{}
	m := &TxManager{pool: &fakeBeginner{tx: tx}}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic must propagate")
			}
		}()
		_ = m.InTx(context.Background(), func(pgx.Tx) error {
			panic("mid-cascade failure")
		})
	}()

	if tx.committed {
		t.Error("panicking unit must not commit")
	}
	if !tx.rolledBack {
		t.Error("panicking unit must roll back")
	}
}

func TestInTxBeginFailure(t *testing.T) {
	beginErr := errors.New("pool exhausted")
	m := &TxManager{pool: &fakeBeginner{beginErr: beginErr}}

	err := m.InTx(context.Background(), func(pgx.Tx) error {
		t.Error("unit must not run when begin fails")
		return nil
	})
	if !errors.Is(err, beginErr) {
		t.Errorf("err = %v, want begin error", err)
	}
}
