package presence

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitepulse/kioskd/internal/model"
)

var t0 = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)

func logAt(id, emp string, dir model.Direction, offset time.Duration, seq int64) model.AttendanceLog {
	return model.AttendanceLog{ID: id, EmployeeID: emp, Direction: dir, Timestamp: t0.Add(offset), Seq: seq}
}

func TestDerive_PresentIffLatestIsIn(t *testing.T) {
	employees := []model.Employee{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}
	logs := []model.AttendanceLog{
		logAt("a", "e1", model.DirectionIn, 0, 1),
		logAt("b", "e2", model.DirectionIn, 0, 2),
		logAt("c", "e2", model.DirectionOut, time.Hour, 3),
	}

	got := Derive(employees, logs)
	require.Len(t, got, 3)

	assert.True(t, got[0].Present)
	since, ok := got[0].Since()
	assert.True(t, ok)
	assert.Equal(t, t0, since)

	assert.False(t, got[1].Present)
	out, ok := got[1].OutAt()
	assert.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), out)

	assert.False(t, got[2].Present)
	_, ok = got[2].OutAt()
	assert.False(t, ok, "no events means no out-at time")
}

// Latest is by event timestamp, not insertion order: a delayed OUT inserted
// after a later IN must not hide the IN.
func TestDerive_UsesTimestampNotInsertionOrder(t *testing.T) {
	employees := []model.Employee{{ID: "e1"}}
	logs := []model.AttendanceLog{
		logAt("in-late", "e1", model.DirectionIn, 2*time.Hour, 1),
		logAt("out-early", "e1", model.DirectionOut, time.Hour, 2),
	}

	got := Derive(employees, logs)
	assert.True(t, got[0].Present)
	assert.Equal(t, t0.Add(2*time.Hour), got[0].At)
}

func TestLatest_TieBreaksOnSeq(t *testing.T) {
	logs := []model.AttendanceLog{
		logAt("x", "e1", model.DirectionOut, 0, 5),
		logAt("y", "e1", model.DirectionIn, 0, 4),
	}
	last, ok := Latest(logs)
	require.True(t, ok)
	assert.Equal(t, "x", last.ID)

	_, ok = Latest(nil)
	assert.False(t, ok)
}

func TestDerive_PropertyShuffledHistory(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(12)
		logs := make([]model.AttendanceLog, n)
		latestIdx := 0
		for i := range logs {
			dir := model.DirectionIn
			if rng.Intn(2) == 0 {
				dir = model.DirectionOut
			}
			// distinct timestamps
			logs[i] = logAt("l", "e1", dir, time.Duration(i)*time.Minute, int64(i+1))
			latestIdx = i
		}
		want := logs[latestIdx].Direction == model.DirectionIn
		rng.Shuffle(len(logs), func(i, j int) { logs[i], logs[j] = logs[j], logs[i] })

		got := Derive([]model.Employee{{ID: "e1"}}, logs)
		assert.Equal(t, want, got[0].Present, "trial %d", trial)
	}
}

func TestNextDirection(t *testing.T) {
	assert.Equal(t, model.DirectionIn, NextDirection(nil))
	assert.Equal(t, model.DirectionOut, NextDirection([]model.AttendanceLog{logAt("a", "e1", model.DirectionIn, 0, 1)}))
	assert.Equal(t, model.DirectionIn, NextDirection([]model.AttendanceLog{
		logAt("a", "e1", model.DirectionIn, 0, 1),
		logAt("b", "e1", model.DirectionOut, time.Minute, 2),
	}))
}

type memSource struct {
	employees []model.Employee
	logs      []model.AttendanceLog
}

func (m memSource) ListEmployees(context.Context) ([]model.Employee, error) { return m.employees, nil }
func (m memSource) ListLogs(context.Context) ([]model.AttendanceLog, error) { return m.logs, nil }

func TestBoard_PresentFirstThenByName(t *testing.T) {
	src := memSource{
		employees: []model.Employee{
			{ID: "e1", FirstName: "Zoe"},
			{ID: "e2", FirstName: "Adam"},
			{ID: "e3", FirstName: "Mia"},
		},
		logs: []model.AttendanceLog{
			logAt("a", "e1", model.DirectionIn, 0, 1),
			logAt("b", "e3", model.DirectionIn, 0, 2),
			logAt("c", "e1", model.DirectionOut, time.Minute, 3),
		},
	}

	board, err := Board(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "e3", board[0].Employee.ID)
	assert.Equal(t, "e2", board[1].Employee.ID)
	assert.Equal(t, "e1", board[2].Employee.ID)
	assert.Equal(t, 1, CountPresent(board))
}
