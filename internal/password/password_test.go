package password

import (
	"strings"
	"testing"
)

// testHasher: дешёвые параметры scrypt для тестов.
func testHasher() *ScryptHasher {
	return &ScryptHasher{N: 1 << 4, R: 8, P: 1, SaltLen: DefaultSaltLen, KeyLen: 32}
}

func TestScryptHasher_HashVerify(t *testing.T) {
	h := testHasher()

	encoded, err := h.Hash("Secret#1234")
	if err != nil {
		t.Fatalf("Hash() вернул ошибку: %v", err)
	}
	if !strings.HasPrefix(encoded, "scrypt:16:8:1$") {
		t.Errorf("Hash() = %q, ожидается префикс scrypt:16:8:1$", encoded)
	}
	if !h.Verify(encoded, "Secret#1234") {
		t.Error("Verify() с верным паролем вернул false")
	}
	if h.Verify(encoded, "secret#1234") {
		t.Error("Verify() с неверным паролем вернул true")
	}
}

func TestScryptHasher_Salted(t *testing.T) {
	h := testHasher()

	a, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() вернул ошибку: %v", err)
	}
	b, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() вернул ошибку: %v", err)
	}
	if a == b {
		t.Error("два хэша одного пароля совпали, соль не применяется")
	}
}

func TestScryptHasher_VerifyUsesStoredParams(t *testing.T) {
	encoded, err := testHasher().Hash("pw")
	if err != nil {
		t.Fatalf("Hash() вернул ошибку: %v", err)
	}

	// Хэшер с другими параметрами проверяет старый хэш по параметрам из строки
	if !NewScryptHasher().Verify(encoded, "pw") {
		t.Error("Verify() не учитывает параметры из хэша")
	}
}

func TestScryptHasher_MalformedHash(t *testing.T) {
	h := testHasher()
	tests := []string{
		"",
		"plain-text",
		"pbkdf2:sha256:1000$salt$abcd",
		"scrypt:16:8$salt$abcd",
		"scrypt:x:8:1$salt$abcd",
		"scrypt:16:8:1$salt$not-hex",
		"scrypt:16:8:1$salt$",
	}
	for _, encoded := range tests {
		if h.Verify(encoded, "pw") {
			t.Errorf("Verify(%q) вернул true для некорректного хэша", encoded)
		}
	}
}

func TestRandomSalt_Uniform(t *testing.T) {
	const perSymbol = 5000
	salt, err := randomSalt(len(saltAlphabet) * perSymbol)
	if err != nil {
		t.Fatalf("randomSalt() вернул ошибку: %v", err)
	}

	counts := make(map[rune]int, len(saltAlphabet))
	for _, c := range salt {
		if !strings.ContainsRune(saltAlphabet, c) {
			t.Fatalf("символ %q вне алфавита соли", c)
		}
		counts[c]++
	}
	if len(counts) != len(saltAlphabet) {
		t.Fatalf("встретилось %d символов из %d", len(counts), len(saltAlphabet))
	}

	lo, hi := perSymbol*2, 0
	for _, n := range counts {
		lo, hi = min(lo, n), max(hi, n)
	}
	// Смещение b%62 даёт первым восьми символам на 25% больше
	if float64(hi)/float64(lo) > 1.15 {
		t.Errorf("неравномерная соль: min=%d max=%d", lo, hi)
	}
}
