package repository

import "errors"

// Доменные ошибки хранилища. Сырые ошибки драйвера наружу не выходят:
// отсутствие строки превращается в ErrNotFound, нарушение уникальности —
// в ErrEmailTaken или ErrConflict.
var (
	// ErrNotFound — запись не найдена либо мягко удалена.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken — адрес электронной почты уже занят другим пользователем.
	ErrEmailTaken = errors.New("email already taken")
	// ErrConflict — конкурентная запись той же сущности; операция может быть повторена.
	ErrConflict = errors.New("write conflict")
)
