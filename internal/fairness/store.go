package fairness

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/fair-slot/internal/errors"
)

const defaultShardCount = 32

// Commitment 服务端种子承诺，每个玩家至多一个
type Commitment struct {
	PlayerID  string
	Seed      string
	Hash      string
	CreatedAt time.Time
}

// CommitmentStore 承诺存储
// Put 静默覆盖旧承诺；TakeAndClear 读取即删除，只能成功一次
// TakeIfHash 只在哈希一致时删除，不一致时保留现有承诺
type CommitmentStore interface {
	Put(playerID string, commitment *Commitment)
	TakeAndClear(playerID string) (*Commitment, error)
	TakeIfHash(playerID, hash string) (*Commitment, error)
	Hash(playerID string) (string, bool)
	PurgeExpired(maxAge time.Duration) int
	Len() int
}

type commitmentShard struct {
	mu    sync.Mutex
	items map[string]*Commitment
}

// MemoryCommitmentStore 分片加锁的内存承诺存储
type MemoryCommitmentStore struct {
	shards []*commitmentShard
	now    func() time.Time
}

// NewMemoryCommitmentStore 创建内存承诺存储
func NewMemoryCommitmentStore(shardCount int) *MemoryCommitmentStore {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	s := &MemoryCommitmentStore{
		shards: make([]*commitmentShard, shardCount),
		now:    time.Now,
	}
	for i := range s.shards {
		s.shards[i] = &commitmentShard{items: make(map[string]*Commitment)}
	}
	return s
}

func (s *MemoryCommitmentStore) shardFor(playerID string) *commitmentShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Put 保存承诺，覆盖该玩家未揭示的旧承诺
func (s *MemoryCommitmentStore) Put(playerID string, commitment *Commitment) {
	sh := s.shardFor(playerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	stored := *commitment
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	sh.items[playerID] = &stored
}

// TakeAndClear 取出并删除承诺
func (s *MemoryCommitmentStore) TakeAndClear(playerID string) (*Commitment, error) {
	sh := s.shardFor(playerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	commitment, ok := sh.items[playerID]
	if !ok {
		return nil, errors.New(errors.ErrNoCommittedSeed, "player_id="+playerID)
	}
	delete(sh.items, playerID)
	return commitment, nil
}

// TakeIfHash 承诺哈希与hash一致时取出并删除
func (s *MemoryCommitmentStore) TakeIfHash(playerID, hash string) (*Commitment, error) {
	sh := s.shardFor(playerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	commitment, ok := sh.items[playerID]
	if !ok {
		return nil, errors.New(errors.ErrNoCommittedSeed, "player_id="+playerID)
	}
	if !strings.EqualFold(commitment.Hash, hash) {
		return nil, errors.Newf(errors.ErrSeedHashMismatch, "当前承诺 %s，期望 %s", commitment.Hash, hash)
	}
	delete(sh.items, playerID)
	return commitment, nil
}

// Hash 只返回承诺哈希，不暴露种子
func (s *MemoryCommitmentStore) Hash(playerID string) (string, bool) {
	sh := s.shardFor(playerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	commitment, ok := sh.items[playerID]
	if !ok {
		return "", false
	}
	return commitment.Hash, true
}

// PurgeExpired 清理超过maxAge仍未揭示的承诺，返回清理数量
func (s *MemoryCommitmentStore) PurgeExpired(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)
	purged := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for playerID, commitment := range sh.items {
			if commitment.CreatedAt.Before(cutoff) {
				delete(sh.items, playerID)
				purged++
			}
		}
		sh.mu.Unlock()
	}
	return purged
}

// Len 当前存活的承诺数
func (s *MemoryCommitmentStore) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.items)
		sh.mu.Unlock()
	}
	return total
}
