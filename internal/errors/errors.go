package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError é a interface central para todos os erros customizados do serviço.
// Permite que o Handler acesse a Categoria, o status HTTP e a causa original.
type AppError interface {
	Error() string
	Category() string
	HTTPStatus() int
	Unwrap() error
}

// --- Erros de Domínio ---

// ValidationError representa falhas de validação de dados de entrada.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return e.Msg }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest }
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError cria um novo erro de validação.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError representa a ausência de um documento na coleção.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound }
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// UnavailableError indica um recurso opcional que não foi configurado (ex: bucket S3).
type UnavailableError struct {
	Msg string
}

func (e *UnavailableError) Error() string    { return fmt.Sprintf("Indisponível: %s", e.Msg) }
func (e *UnavailableError) Category() string { return "UNAVAILABLE" }
func (e *UnavailableError) HTTPStatus() int  { return http.StatusServiceUnavailable }
func (e *UnavailableError) Unwrap() error    { return nil }

// NewUnavailableError cria um erro de recurso indisponível.
func NewUnavailableError(msg string) AppError {
	return &UnavailableError{Msg: msg}
}

// --- Erros de Infraestrutura (Encapsulamento) ---

// InternalError representa falhas inesperadas no store, serviço ou repositório.
// A mensagem inclui a causa para que o usuário veja o texto bruto do erro remoto.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Err.Error())
}
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError }
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor encapsulando a causa.
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// NewStoreError é um atalho para falhas do document store remoto.
func NewStoreError(msg string, err error) AppError {
	return NewInternalError(fmt.Sprintf("%s (store)", msg), err)
}

// Message devolve apenas o texto que deve ser exibido ao usuário:
// para erros internos, a mensagem da causa original.
func Message(err error) string {
	var internal *InternalError
	if stderrors.As(err, &internal) && internal.Err != nil {
		return Message(internal.Err)
	}
	return err.Error()
}

// --- Helper para o Handler (Tradução Final) ---

// MapToHTTPStatus traduz um erro (possivelmente encapsulado) para status, categoria e mensagem.
func MapToHTTPStatus(err error) (int, string, string) {
	var appErr AppError
	if stderrors.As(err, &appErr) {
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "Ocorreu um erro inesperado."
}
