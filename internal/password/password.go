// Пакет password: стратегия хэширования паролей.
// Хэш самоописываемый: параметры и соль хранятся вместе с ключом,
// поэтому проверка не зависит от текущих настроек хэшера.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Hasher: стратегия хэширования паролей.
type Hasher interface {
	// Hash возвращает закодированный солёный хэш пароля.
	Hash(password string) (string, error)
	// Verify проверяет пароль по закодированному хэшу.
	// Некорректный формат хэша даёт false.
	Verify(encoded, password string) bool
}

// Параметры scrypt по умолчанию.
const (
	DefaultN       = 1 << 15
	DefaultR       = 8
	DefaultP       = 1
	DefaultSaltLen = 16
	DefaultKeyLen  = 64

	scheme = "scrypt"
)

// ErrMalformedHash: закодированный хэш не разбирается.
var ErrMalformedHash = errors.New("некорректный формат хэша пароля")

// ScryptHasher хэширует пароли через scrypt.
// Формат: scrypt:<N>:<r>:<p>$<salt>$<hex key>.
type ScryptHasher struct {
	N, R, P int
	SaltLen int
	KeyLen  int
}

// NewScryptHasher создаёт хэшер с параметрами по умолчанию.
func NewScryptHasher() *ScryptHasher {
	return &ScryptHasher{
		N:       DefaultN,
		R:       DefaultR,
		P:       DefaultP,
		SaltLen: DefaultSaltLen,
		KeyLen:  DefaultKeyLen,
	}
}

// Hash возвращает закодированный хэш со случайной солью.
func (h *ScryptHasher) Hash(password string) (string, error) {
	salt, err := randomSalt(h.SaltLen)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}

	key, err := scrypt.Key([]byte(password), []byte(salt), h.N, h.R, h.P, h.KeyLen)
	if err != nil {
		return "", fmt.Errorf("ошибка вычисления scrypt: %w", err)
	}

	return fmt.Sprintf("%s:%d:%d:%d$%s$%s", scheme, h.N, h.R, h.P, salt, hex.EncodeToString(key)), nil
}

// Verify проверяет пароль, используя параметры из самого хэша.
func (h *ScryptHasher) Verify(encoded, password string) bool {
	params, err := parse(encoded)
	if err != nil {
		return false
	}

	key, err := scrypt.Key([]byte(password), []byte(params.salt), params.n, params.r, params.p, len(params.key))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, params.key) == 1
}

type parsedHash struct {
	n, r, p int
	salt    string
	key     []byte
}

// parse разбирает строку scrypt:<N>:<r>:<p>$<salt>$<hex key>.
func parse(encoded string) (*parsedHash, error) {
	parts := strings.SplitN(encoded, "$", 3)
	if len(parts) != 3 {
		return nil, ErrMalformedHash
	}

	method := strings.Split(parts[0], ":")
	if len(method) != 4 || method[0] != scheme {
		return nil, ErrMalformedHash
	}

	nums := make([]int, 3)
	for i, s := range method[1:] {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return nil, ErrMalformedHash
		}
		nums[i] = v
	}

	key, err := hex.DecodeString(parts[2])
	if err != nil || len(key) == 0 {
		return nil, ErrMalformedHash
	}

	return &parsedHash{n: nums[0], r: nums[1], p: nums[2], salt: parts[1], key: key}, nil
}

const saltAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomSalt возвращает соль из алфавитно-цифровых символов,
// чтобы она не конфликтовала с разделителями формата.
func randomSalt(n int) (string, error) {
	// Байты не ниже limit отбрасываются: распределение по алфавиту равномерное
	limit := 256 - 256%len(saltAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, saltAlphabet[int(b)%len(saltAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
