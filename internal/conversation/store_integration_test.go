package conversation_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bayy420-999/wulang-ai/internal/conversation"
	"github.com/bayy420-999/wulang-ai/internal/user"
)

func setupStoreIntegrationTest(t *testing.T) (*conversation.Store, *user.Store, *pgxpool.Pool, func()) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}

	return conversation.NewStore(nil, pool), user.NewStore(nil, pool), pool, func() { pool.Close() }
}

func TestListTrailingEqualTimestampsKeepInsertionOrder(t *testing.T) {
	convStore, userStore, pool, cleanup := setupStoreIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	phone := fmt.Sprintf("test-%d", time.Now().UnixNano())
	u, err := userStore.Create(ctx, phone, "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	defer func() {
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID)
	}()

	conv, err := convStore.Create(ctx, u.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	// Force the created_at tie a same-microsecond user/assistant pair
	// produces; insertion order must still come back user first.
	ts := time.Now().UTC().Truncate(time.Microsecond)
	for _, m := range []struct {
		role    string
		content string
	}{
		{role: "user", content: "halo"},
		{role: "assistant", content: "halo juga"},
	} {
		if _, err := pool.Exec(ctx,
			`INSERT INTO messages (conversation_id, role, content, created_at)
			 VALUES ($1, $2, $3, $4)`,
			conv.ID, m.role, m.content, ts,
		); err != nil {
			t.Fatalf("insert %s message: %v", m.role, err)
		}
	}

	msgs, err := convStore.ListTrailing(ctx, conv.ID, 10)
	if err != nil {
		t.Fatalf("list trailing: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("order = [%s, %s], want [user, assistant]", msgs[0].Role, msgs[1].Role)
	}
}

func TestListTrailingWindowIsMostRecent(t *testing.T) {
	convStore, userStore, pool, cleanup := setupStoreIntegrationTest(t)
	defer cleanup()

	ctx := context.Background()
	phone := fmt.Sprintf("test-%d", time.Now().UnixNano())
	u, err := userStore.Create(ctx, phone, "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	defer func() {
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, u.ID)
	}()

	conv, err := convStore.Create(ctx, u.ID)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	for i := 0; i < 15; i++ {
		if _, err := convStore.Append(ctx, conversation.AppendInput{
			ConversationID: conv.ID,
			Role:           conversation.RoleUser,
			Content:        fmt.Sprintf("pesan %d", i),
		}); err != nil {
			t.Fatalf("append message %d: %v", i, err)
		}
	}

	msgs, err := convStore.ListTrailing(ctx, conv.ID, 10)
	if err != nil {
		t.Fatalf("list trailing: %v", err)
	}
	if len(msgs) != 10 {
		t.Fatalf("got %d messages, want 10", len(msgs))
	}
	for i, m := range msgs {
		want := fmt.Sprintf("pesan %d", i+5)
		if m.Content != want {
			t.Errorf("message %d content = %q, want %q", i, m.Content, want)
		}
	}
}
