package model

import (
	"fmt"

	"github.com/juju/errors"
)

// DecodeError ошибка декодирования R-JPEG внешней библиотекой. Фатальна только для одного файла.
type DecodeError struct {
	Path string
	// Код возврата SDK (0, если ошибка не от SDK)
	Code int
	Err  error
}

func (e *DecodeError) Error() string {
	msg := "ошибка декодирования R-JPEG"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Code != 0 {
		msg += fmt.Sprintf(" (код SDK %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// PrecisionOverflowError выбранный шаг квантования не помещает диапазон модели в 16 бит
type PrecisionOverflowError struct {
	Model     string
	Precision float64
	Steps     float64
}

func (e *PrecisionOverflowError) Error() string {
	return fmt.Sprintf("шаг %g°C для модели %s даёт %.0f уровней, больше 65535", e.Precision, e.Model, e.Steps)
}

// IOError ошибка записи выходного файла. Частичный файл не остаётся.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("ошибка записи %s: %v", e.Path, e.Err)
}

// CanceledError файл не был обработан из-за отмены пакетной обработки
type CanceledError struct {
	Path string
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("обработка %s отменена", e.Path)
}

// IsDecodeError причина ошибки err - DecodeError
func IsDecodeError(err error) bool {
	_, ok := errors.Cause(err).(*DecodeError)
	return ok
}

// IsPrecisionOverflow причина ошибки err - PrecisionOverflowError
func IsPrecisionOverflow(err error) bool {
	_, ok := errors.Cause(err).(*PrecisionOverflowError)
	return ok
}

// IsIOError причина ошибки err - IOError
func IsIOError(err error) bool {
	_, ok := errors.Cause(err).(*IOError)
	return ok
}

// IsCanceled причина ошибки err - CanceledError
func IsCanceled(err error) bool {
	_, ok := errors.Cause(err).(*CanceledError)
	return ok
}

// ErrorKind короткое имя вида ошибки для журналов и API
func ErrorKind(err error) string {
	switch errors.Cause(err).(type) {
	case nil:
		return ""
	case *DecodeError:
		return "DecodeError"
	case *PrecisionOverflowError:
		return "PrecisionOverflow"
	case *IOError:
		return "IOError"
	case *CanceledError:
		return "Canceled"
	default:
		return "Error"
	}
}
