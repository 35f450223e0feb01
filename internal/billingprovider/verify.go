package billingprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrSignatureInvalid возвращается при любой проблеме с подписью вебхука:
// отсутствующий или искажённый заголовок, несовпадение HMAC,
// слишком старая метка времени.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// DefaultTolerance — допустимый возраст метки времени в подписи.
const DefaultTolerance = 5 * time.Minute

// VerifyEvent проверяет подпись сырого тела вебхука.
// Заголовок имеет вид "t=<unix>,v1=<hex>", где v1 — HMAC-SHA256
// от строки "<t>.<body>" на секрете подписи. Сравнение выполняется
// в константное время. Тело должно быть именно теми байтами,
// что пришли по сети, до какого-либо парсинга.
func VerifyEvent(body []byte, signatureHeader, secret string, now time.Time, tolerance time.Duration) error {
	const op = "billingprovider.VerifyEvent"

	var timestamp int64
	var signature []byte
	for _, part := range strings.Split(signatureHeader, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: bad timestamp: %w", op, ErrSignatureInvalid)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				return fmt.Errorf("%s: bad signature encoding: %w", op, ErrSignatureInvalid)
			}
			signature = sig
		}
	}
	if timestamp == 0 || len(signature) == 0 {
		return fmt.Errorf("%s: missing parts: %w", op, ErrSignatureInvalid)
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return fmt.Errorf("%s: timestamp outside tolerance: %w", op, ErrSignatureInvalid)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), signature) {
		return fmt.Errorf("%s: %w", op, ErrSignatureInvalid)
	}
	return nil
}

// SignPayload формирует заголовок подписи для тела body с меткой времени now.
// Используется в тестах и локальной отладке вебхуков.
func SignPayload(body []byte, secret string, now time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", now.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
