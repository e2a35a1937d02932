package fairness

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/fair-slot/internal/errors"
	"github.com/wfunc/fair-slot/internal/metrics"
	"go.uber.org/zap"
)

// SeedBytes 服务端种子的熵长度
const SeedBytes = 32

// Coordinator 可证明公平协调器：承诺、揭示、组合种子
type Coordinator struct {
	store   CommitmentStore
	entropy io.Reader
	logger  *zap.Logger
	now     func() time.Time
}

// NewCoordinator 创建协调器
func NewCoordinator(store CommitmentStore, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:   store,
		entropy: rand.Reader,
		logger:  logger,
		now:     time.Now,
	}
}

// CommitServerSeed 生成新种子并承诺，返回种子的SHA256十六进制
// 会覆盖该玩家尚未揭示的旧承诺
func (c *Coordinator) CommitServerSeed(playerID string) (string, error) {
	if playerID == "" {
		return "", errors.New(errors.ErrInvalidParam, "player_id为空")
	}

	seed, err := GenerateSeed(c.entropy)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrSeedGenerate)
	}

	hash := HashSeed(seed)
	c.store.Put(playerID, &Commitment{
		PlayerID:  playerID,
		Seed:      seed,
		Hash:      hash,
		CreatedAt: c.now(),
	})
	metrics.CommitmentsTotal.WithLabelValues("committed").Inc()

	c.logger.Debug("服务端种子已承诺",
		zap.String("player_id", playerID),
		zap.String("commit_hash", hash))
	return hash, nil
}

// UseCommittedSeed 取出并销毁承诺的种子，这是读取原始种子的唯一途径
func (c *Coordinator) UseCommittedSeed(playerID string) (string, error) {
	commitment, err := c.store.TakeAndClear(playerID)
	if err != nil {
		return "", err
	}
	metrics.CommitmentsTotal.WithLabelValues("revealed").Inc()

	c.logger.Debug("服务端种子已揭示",
		zap.String("player_id", playerID),
		zap.String("commit_hash", commitment.Hash))
	return commitment.Seed, nil
}

// RevealCommitted 只有当前承诺仍是commitHash时才揭示种子
// 不一致时保留现有承诺，新公布的哈希不受影响
func (c *Coordinator) RevealCommitted(playerID, commitHash string) (string, error) {
	commitment, err := c.store.TakeIfHash(playerID, commitHash)
	if err != nil {
		return "", err
	}
	metrics.CommitmentsTotal.WithLabelValues("revealed").Inc()

	c.logger.Debug("服务端种子已揭示",
		zap.String("player_id", playerID),
		zap.String("commit_hash", commitment.Hash))
	return commitment.Seed, nil
}

// CommittedHash 查询玩家当前承诺的哈希
func (c *Coordinator) CommittedHash(playerID string) (string, bool) {
	return c.store.Hash(playerID)
}

// StartCleanupTask 定期清理被放弃的承诺，ctx取消后退出
func (c *Coordinator) StartCleanupTask(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if purged := c.store.PurgeExpired(maxAge); purged > 0 {
					metrics.CommitmentsTotal.WithLabelValues("purged").Add(float64(purged))
					c.logger.Info("清理过期种子承诺",
						zap.Int("purged", purged),
						zap.Int("live", c.store.Len()))
				}
			}
		}
	}()
}

// GenerateSeed 从熵源读取SeedBytes字节并十六进制编码
func GenerateSeed(entropy io.Reader) (string, error) {
	buf := make([]byte, SeedBytes)
	if _, err := io.ReadFull(entropy, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashSeed 计算种子字符串的SHA256十六进制
func HashSeed(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// VerifyCommitment 校验揭示的种子与公开的承诺哈希一致
func VerifyCommitment(seed, commitHash string) bool {
	expected := HashSeed(seed)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(commitHash))) == 1
}

// CombineSeeds 组合服务端与客户端种子
func CombineSeeds(serverSeed, clientSeed string) string {
	return serverSeed + ":" + clientSeed
}

// CreateRNGFromSeeds 由服务端与客户端种子构建确定性随机数生成器
func CreateRNGFromSeeds(serverSeed, clientSeed string) *DeterministicRNG {
	return NewDeterministicRNG(CombineSeeds(serverSeed, clientSeed))
}

// FirstDraw 组合种子的第一次抽取
func FirstDraw(serverSeed, clientSeed string) float64 {
	return CreateRNGFromSeeds(serverSeed, clientSeed).Next()
}

// VerifySeed 以6位小数精度比较声明值与重算的第一次抽取
func VerifySeed(serverSeed, clientSeed string, claimedDraw float64) bool {
	return formatDraw(FirstDraw(serverSeed, clientSeed)) == formatDraw(claimedDraw)
}

// Replay 重放组合种子的前n次抽取，用于玩家审计
func Replay(serverSeed, clientSeed string, n int) []float64 {
	rng := CreateRNGFromSeeds(serverSeed, clientSeed)
	draws := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		draws = append(draws, rng.Next())
	}
	return draws
}

func formatDraw(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
