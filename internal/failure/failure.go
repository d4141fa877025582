// Package failure описывает классификацию ошибок подсистемы выезда.
package failure

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind определяет класс ошибки.
type Kind string

const (
	// KindConfiguration — дефект конфигурации или тарифной таблицы, не повторяется.
	KindConfiguration Kind = "CONFIGURATION_ERROR"
	// KindLookup — не удалось прочитать счёт или бронирование.
	KindLookup Kind = "LOOKUP_FAILURE"
	// KindMutation — не удалось изменить счёт, провести оплату или выезд.
	KindMutation Kind = "MUTATION_FAILURE"
	// KindValidation — некорректный ввод оператора.
	KindValidation Kind = "VALIDATION_FAILURE"
	// KindInternal — всё, что не попало в классификацию.
	KindInternal Kind = "INTERNAL_ERROR"
)

// Metadata описывает, как ошибка отображается наружу.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
}

var metadataByKind = map[Kind]Metadata{
	KindConfiguration: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     false,
		PublicMessage: "pricing configuration error",
	},
	KindLookup: {
		HTTPStatus:    http.StatusBadGateway,
		Retryable:     true,
		PublicMessage: "billing lookup failed",
	},
	KindMutation: {
		HTTPStatus:    http.StatusBadGateway,
		Retryable:     true,
		PublicMessage: "billing update failed",
	},
	KindValidation: {
		HTTPStatus:    http.StatusBadRequest,
		Retryable:     false,
		PublicMessage: "validation failed",
	},
	KindInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     false,
		PublicMessage: "internal server error",
	},
}

// MetadataFor возвращает метаданные класса ошибки.
func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

// Error — классифицированная ошибка с необязательной причиной.
type Error struct {
	kind    Kind
	message string
	cause   error
}

// New создаёт ошибку указанного класса.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf создаёт ошибку указанного класса с форматированным сообщением.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает причину в ошибку указанного класса.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return New(kind, message)
	}
	return &Error{kind: kind, message: message, cause: err}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As извлекает классифицированную ошибку из цепочки.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// KindOf возвращает класс ошибки; неклассифицированные ошибки считаются внутренними.
func KindOf(err error) Kind {
	if typed := As(err); typed != nil {
		return typed.Kind()
	}
	return KindInternal
}

// Is сообщает, относится ли ошибка к указанному классу.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
