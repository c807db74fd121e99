package database

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *DataService {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDataService(db)
}

func TestCreateAndListTasks_PreservesOrder(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := s.CreateTask(ctx, Task{Title: title, Details: "d", BuyerEmail: "b@example.com"})
		require.NoError(t, err)
	}
	_, err := s.CreateTask(ctx, Task{Title: "other", Details: "d", BuyerEmail: "x@example.com"})
	require.NoError(t, err)

	tasks, err := s.ListTasksByBuyer(ctx, "b@example.com")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "first", tasks[0].Title)
	assert.Equal(t, "third", tasks[2].Title)
	assert.NotEmpty(t, tasks[0].ID)
	assert.NotEqual(t, tasks[0].ID, tasks[1].ID)

	u, err := s.GetUser(ctx, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleBuyer, u.Role)
}

func TestListTasksByBuyer_EmptyIsNotNil(t *testing.T) {
	s := newTestService(t)

	tasks, err := s.ListTasksByBuyer(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestUpdateAndDeleteTask(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, err := s.CreateTask(ctx, Task{Title: "old", Details: "d", BuyerEmail: "b@example.com"})
	require.NoError(t, err)

	created.Title = "new"
	created.PayableAmount = 12.5
	n, err := s.UpdateTask(ctx, created)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, 12.5, got.PayableAmount)

	n, err = s.DeleteTask(ctx, created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.GetTask(ctx, created.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err = s.DeleteTask(ctx, created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestSaveUser_RejectsUnknownRole(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	assert.Error(t, s.SaveUser(ctx, "a@example.com", "overlord"))
	require.NoError(t, s.SaveUser(ctx, "a@example.com", RoleAdmin))

	u, err := s.GetUser(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, u.Role)

	_, err = s.GetUser(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskUnmarshal_LooseNumbers(t *testing.T) {
	var task Task
	err := json.Unmarshal([]byte(`{"_id":"t1","taskTitle":"x","requiredWorkers":"4","payableAmount":"2.5"}`), &task)
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, 4, task.RequiredWorkers)
	assert.Equal(t, 2.5, task.PayableAmount)

	task = Task{}
	err = json.Unmarshal([]byte(`{"_id":"t2","requiredWorkers":"lots","payableAmount":null}`), &task)
	require.NoError(t, err)
	assert.Equal(t, 0, task.RequiredWorkers)
	assert.Equal(t, 0.0, task.PayableAmount)

	task = Task{}
	err = json.Unmarshal([]byte(`{"_id":"t3","requiredWorkers":7,"payableAmount":1.25}`), &task)
	require.NoError(t, err)
	assert.Equal(t, 7, task.RequiredWorkers)
	assert.Equal(t, 1.25, task.PayableAmount)
}

func TestTaskUnmarshal_NonFiniteNumbersAreZero(t *testing.T) {
	for _, v := range []string{`"Inf"`, `"+Inf"`, `"-Inf"`, `"NaN"`, `"1e400"`, `1e400`} {
		var task Task
		body := `{"taskTitle":"x","requiredWorkers":` + v + `,"payableAmount":` + v + `}`
		require.NoError(t, json.Unmarshal([]byte(body), &task), v)
		assert.Equal(t, 0, task.RequiredWorkers, v)
		assert.Equal(t, 0.0, task.PayableAmount, v)

		_, err := json.Marshal(task)
		assert.NoError(t, err, v)
	}
}

func TestLooseNumber(t *testing.T) {
	assert.Equal(t, 0.0, LooseNumber(""))
	assert.Equal(t, 0.0, LooseNumber("  "))
	assert.Equal(t, 0.0, LooseNumber("abc"))
	assert.Equal(t, 3.5, LooseNumber(" 3.5 "))
	assert.Equal(t, 12, LooseInt("12"))
	assert.Equal(t, 0, LooseInt(""))
	assert.Equal(t, 0, LooseInt("99999999999"))
}
