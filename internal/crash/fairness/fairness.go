// Package fairness implementa o esquema commit/reveal das rodadas de crash.
//
// Cada rodada recebe uma server seed secreta gerada com crypto/rand. O hash
// SHA-256 da seed é publicado antes de qualquer aposta; o crash point é uma
// função pura da seed (HMAC-SHA256 com um salt público), então qualquer pessoa
// consegue recalcular o resultado depois da revelação.
package fairness

import (
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// bits usados do HMAC para derivar o crash point (52 bits cabem exatos num float64)
const (
	hashBits  = 52
	hashChars = hashBits / 4
)

var (
	ErrCommitmentMismatch = errors.New("server seed does not match commitment")
	ErrCrashPointMismatch = errors.New("crash point does not match server seed")
)

// Params são os parâmetros públicos da derivação
type Params struct {
	Salt string
	// HouseEdgeModulo: 1 em cada N hashes vira crash instantâneo em 1.00x.
	// Zero desliga a vantagem da casa.
	HouseEdgeModulo uint64
}

// Commitment é o que o motor guarda por rodada. Seed fica privada até o crash.
type Commitment struct {
	ServerSeed string
	Hash       string
	CrashPoint float64
}

// Provider gera compromissos com parâmetros fixos
type Provider struct {
	params  Params
	newSeed func() (string, error)
}

type Option func(*Provider)

// WithSeedSource troca a origem das seeds (replay de seeds conhecidas, testes)
func WithSeedSource(fn func() (string, error)) Option {
	return func(p *Provider) { p.newSeed = fn }
}

func NewProvider(p Params, opts ...Option) *Provider {
	pr := &Provider{params: p, newSeed: NewServerSeed}
	for _, opt := range opts {
		opt(pr)
	}
	return pr
}

func (p *Provider) Params() Params { return p.params }

// NewCommitment sorteia uma seed e já fixa hash e crash point
func (p *Provider) NewCommitment() (Commitment, error) {
	seed, err := p.newSeed()
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{
		ServerSeed: seed,
		Hash:       Commit(seed),
		CrashPoint: CrashPoint(seed, p.params),
	}, nil
}

// NewServerSeed gera 32 bytes aleatórios em hex
func NewServerSeed() (string, error) {
	var b [32]byte
	if _, err := crand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read server seed: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Commit retorna o hash publicado antes da rodada
func Commit(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

// CrashPoint deriva o multiplicador de crash (>= 1.00, duas casas) da seed.
// Distribuição ~ 0.99/(1-U): muito peso perto de 1x e cauda longa.
func CrashPoint(seed string, p Params) float64 {
	mac := hmac.New(sha256.New, []byte(seed))
	mac.Write([]byte(p.Salt))
	sum := hex.EncodeToString(mac.Sum(nil))

	h, _ := strconv.ParseUint(sum[:hashChars], 16, 64)
	if p.HouseEdgeModulo > 0 && h%p.HouseEdgeModulo == 0 {
		return 1.00
	}

	e := uint64(1) << hashBits
	cents := (100*e - h) / (e - h)
	return float64(cents) / 100
}

// Verify confere a revelação: hash(seed) == commitment e o crash point bate
func Verify(seed, commitment string, crashPoint float64, p Params) error {
	if Commit(seed) != commitment {
		return ErrCommitmentMismatch
	}
	if toCents(CrashPoint(seed, p)) != toCents(crashPoint) {
		return ErrCrashPointMismatch
	}
	return nil
}

func toCents(m float64) int64 { return int64(math.Round(m * 100)) }
