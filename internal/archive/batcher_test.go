package archive

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sudooom.im.client/internal/config"
	"sudooom.im.client/internal/model"
	"sudooom.im.client/internal/snowflake"
	"sudooom.im.client/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeResults struct {
	errs []error
	i    int
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	var err error
	if r.i < len(r.errs) {
		err = r.errs[r.i]
	}
	r.i++
	return pgconn.NewCommandTag("INSERT 0 1"), err
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row         { return nil }
func (r *fakeResults) Close() error              { return nil }

type fakeDB struct {
	mu      sync.Mutex
	batches [][]*pgx.QueuedQuery
	errs    []error
}

func (d *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches = append(d.batches, b.QueuedQueries)
	return &fakeResults{errs: d.errs}
}

func (d *fakeDB) rows() [][]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out [][]any
	for _, batch := range d.batches {
		for _, q := range batch {
			out = append(out, q.Arguments)
		}
	}
	return out
}

func (d *fakeDB) batchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.batches)
}

func TestBatcher_FlushOnSize(t *testing.T) {
	db := &fakeDB{}
	b := NewBatcher(db, nil, "alice", Config{BatchSize: 2, FlushInterval: time.Hour})
	b.Start()
	defer b.Stop()

	now := time.Now()
	b.OnAppend(model.Direct("bob"), model.MessageRecord{ID: 1, From: "bob", Content: "one", Direction: model.Received, ReceivedAt: now})
	b.OnAppend(model.Group("team"), model.MessageRecord{ID: 2, From: "alice", Content: "two", Direction: model.Sent, ReceivedAt: now, ServerTS: "ts"})

	require.Eventually(t, func() bool { return db.batchCount() == 1 }, time.Second, 5*time.Millisecond)

	rows := db.rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []any{int64(1), "alice", "user_bob", "bob", "one", "received", (*string)(nil), now}, rows[0])
	assert.Equal(t, "group_team", rows[1][2])
	assert.Equal(t, "sent", rows[1][5])
	require.NotNil(t, rows[1][6])
	assert.Equal(t, "ts", *rows[1][6].(*string))
}

func TestBatcher_FlushOnInterval(t *testing.T) {
	db := &fakeDB{}
	b := NewBatcher(db, nil, "alice", Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond})
	b.Start()
	defer b.Stop()

	b.OnAppend(model.Direct("bob"), model.MessageRecord{ID: 1, From: "bob", Content: "one", ReceivedAt: time.Now()})

	require.Eventually(t, func() bool { return len(db.rows()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestBatcher_FlushOnStop(t *testing.T) {
	db := &fakeDB{}
	b := NewBatcher(db, nil, "alice", Config{BatchSize: 100, FlushInterval: time.Hour})
	b.Start()

	for i := 1; i <= 5; i++ {
		b.OnAppend(model.Direct("bob"), model.MessageRecord{ID: snowflake.ID(i), From: "bob", Content: "m", ReceivedAt: time.Now()})
	}
	b.Stop()
	b.Stop()

	assert.Len(t, db.rows(), 5)

	// 停止后入队直接丢弃，不阻塞
	b.OnAppend(model.Direct("bob"), model.MessageRecord{ID: 99, From: "bob", Content: "late"})
}

func TestBatcher_AssignsMissingIDs(t *testing.T) {
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	db := &fakeDB{}
	b := NewBatcher(db, node, "alice", Config{BatchSize: 1, FlushInterval: time.Hour})
	b.Start()
	defer b.Stop()

	b.OnAppend(model.Direct("bob"), model.MessageRecord{From: "bob", Content: "no id", ReceivedAt: time.Now()})

	require.Eventually(t, func() bool { return len(db.rows()) == 1 }, time.Second, 5*time.Millisecond)
	assert.NotZero(t, db.rows()[0][0])
}

func TestBatcher_ExecErrorsAreLogged(t *testing.T) {
	db := &fakeDB{errs: []error{errors.New("duplicate key")}}
	b := NewBatcher(db, nil, "alice", Config{BatchSize: 2, FlushInterval: time.Hour})
	b.Start()

	b.OnAppend(model.Direct("bob"), model.MessageRecord{ID: 1, From: "bob", Content: "one", ReceivedAt: time.Now()})
	b.OnAppend(model.Direct("bob"), model.MessageRecord{ID: 2, From: "bob", Content: "two", ReceivedAt: time.Now()})
	b.Stop()

	assert.Len(t, db.rows(), 2)
}

func TestBatcher_AsStoreListener(t *testing.T) {
	db := &fakeDB{}
	b := NewBatcher(db, nil, "alice", Config{BatchSize: 100, FlushInterval: time.Hour})
	b.Start()

	st := store.New()
	st.Subscribe(b)
	st.Append(model.Direct("bob"), model.MessageRecord{ID: 1, From: "bob", Content: "hello", ReceivedAt: time.Now()})
	st.Append(model.Direct("bob"), model.MessageRecord{ID: 2, From: "bob", Content: "hello", ReceivedAt: time.Now()})
	st.Clear(model.Direct("bob"))
	b.Stop()

	// 重复记录不归档，清空不删除归档
	assert.Len(t, db.rows(), 1)
}

// 需要运行中的 PostgreSQL（通过 POSTGRES_HOST 等环境变量配置），否则跳过
func TestBatcher_LivePostgres(t *testing.T) {
	if os.Getenv("POSTGRES_HOST") == "" {
		t.Skip("跳过测试：未配置 POSTGRES_HOST")
	}
	cfg, err := config.Load("")
	require.NoError(t, err)

	ctx := context.Background()
	pool, err := Connect(ctx, cfg.Database)
	if err != nil {
		t.Skipf("跳过测试：无法连接 PostgreSQL: %v", err)
	}
	defer pool.Close()

	require.NoError(t, EnsureSchema(ctx, pool))

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	id := node.Generate()

	b := NewBatcher(pool, node, "archive-test", Config{BatchSize: 10, FlushInterval: time.Hour})
	b.Start()
	b.OnAppend(model.Direct("bob"), model.MessageRecord{ID: id, From: "bob", Content: "hello", Direction: model.Received, ReceivedAt: time.Now()})
	// 同一 ID 重复写入被忽略
	b.OnAppend(model.Direct("bob"), model.MessageRecord{ID: id, From: "bob", Content: "hello", Direction: model.Received, ReceivedAt: time.Now()})
	b.Stop()

	var count int
	err = pool.QueryRow(ctx, `SELECT count(*) FROM client_messages WHERE id = $1`, id.Int64()).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = pool.Exec(ctx, `DELETE FROM client_messages WHERE identity = 'archive-test'`)
	require.NoError(t, err)
}
