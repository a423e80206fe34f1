package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPatients     = "clinica:patients"
	keyAppointments = "clinica:appointments"
	keyBlocks       = "clinica:blocks"
	keyWeekend      = "clinica:weekend"
)

// NewRedisClient connects to Redis and checks the connection with a ping.
func NewRedisClient(addr, password string, db int, logger *zap.Logger) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", addr))
	return rdb, nil
}

// RedisMirror keeps one hash per entity, keyed by id, holding JSON rows.
type RedisMirror struct {
	rdb *goredis.Client
}

func NewRedisMirror(rdb *goredis.Client) *RedisMirror {
	return &RedisMirror{rdb: rdb}
}

func hashField(n int64) string {
	return strconv.FormatInt(n, 10)
}

func (m *RedisMirror) put(ctx context.Context, key, field string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.rdb.HSet(ctx, key, field, b).Err()
}

func readAll[T any](ctx context.Context, rdb *goredis.Client, key string) ([]T, error) {
	vals, err := rdb.HVals(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		var item T
		if err := json.Unmarshal([]byte(v), &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *RedisMirror) PutPatient(ctx context.Context, p Patient) error {
	return m.put(ctx, keyPatients, hashField(p.ID), p)
}

func (m *RedisMirror) DeletePatient(ctx context.Context, pid int64) error {
	return m.rdb.HDel(ctx, keyPatients, hashField(pid)).Err()
}

func (m *RedisMirror) Patients(ctx context.Context) ([]Patient, error) {
	return readAll[Patient](ctx, m.rdb, keyPatients)
}

func (m *RedisMirror) PutAppointment(ctx context.Context, a Appointment) error {
	a.Patient = nil
	return m.put(ctx, keyAppointments, hashField(a.ID), a)
}

func (m *RedisMirror) DeleteAppointment(ctx context.Context, aid int64) error {
	return m.rdb.HDel(ctx, keyAppointments, hashField(aid)).Err()
}

func (m *RedisMirror) Appointments(ctx context.Context) ([]Appointment, error) {
	return readAll[Appointment](ctx, m.rdb, keyAppointments)
}

func (m *RedisMirror) PutBlock(ctx context.Context, b Block) error {
	return m.put(ctx, keyBlocks, hashField(b.ID), b)
}

func (m *RedisMirror) DeleteBlock(ctx context.Context, bid int64) error {
	return m.rdb.HDel(ctx, keyBlocks, hashField(bid)).Err()
}

func (m *RedisMirror) Blocks(ctx context.Context) ([]Block, error) {
	return readAll[Block](ctx, m.rdb, keyBlocks)
}

func (m *RedisMirror) PutWeekendOverride(ctx context.Context, date string, enabled bool) error {
	return m.rdb.HSet(ctx, keyWeekend, date, strconv.FormatBool(enabled)).Err()
}

func (m *RedisMirror) WeekendOverrides(ctx context.Context) (map[string]bool, error) {
	vals, err := m.rdb.HGetAll(ctx, keyWeekend).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", keyWeekend, err)
	}
	out := make(map[string]bool, len(vals))
	for d, v := range vals {
		on, err := strconv.ParseBool(v)
		if err != nil {
			continue
		}
		out[d] = on
	}
	return out, nil
}

// Replace deletes every mirror hash and repopulates it inside one MULTI/EXEC,
// so readers never see a half rebuilt mirror.
func (m *RedisMirror) Replace(ctx context.Context, snap Snapshot) error {
	_, err := m.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keyPatients, keyAppointments, keyBlocks, keyWeekend)
		for _, p := range snap.Patients {
			b, err := json.Marshal(p)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, keyPatients, hashField(p.ID), b)
		}
		for _, a := range snap.Appointments {
			a.Patient = nil
			b, err := json.Marshal(a)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, keyAppointments, hashField(a.ID), b)
		}
		for _, bl := range snap.Blocks {
			b, err := json.Marshal(bl)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, keyBlocks, hashField(bl.ID), b)
		}
		for d, on := range snap.WeekendOverrides {
			pipe.HSet(ctx, keyWeekend, d, strconv.FormatBool(on))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	return nil
}
