package services

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain проверяет, что параллельные загрузки не оставляют горутин:
// завершение TryConvert обязано дождаться всех воркеров.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
