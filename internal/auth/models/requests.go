package models

import "strings"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=256"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
}

type OTPRequest struct {
	Email   string     `json:"email" validate:"required,email"`
	Purpose OTPPurpose `json:"purpose" validate:"omitempty,oneof=login password_reset"`
}

func (r *OTPRequest) Normalize() {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if r.Purpose == "" {
		r.Purpose = OTPPurposeLogin
	}
}

type OTPVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (r *OTPVerifyRequest) Normalize() {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	r.Code = strings.TrimSpace(r.Code)
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,max=256"`
}

func (r *ResetPasswordRequest) Normalize() {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	r.Code = strings.TrimSpace(r.Code)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=256"`
	NewPassword     string `json:"new_password" validate:"required,max=256"`
}

type CreateUserRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name" validate:"max=120"`
	Department string `json:"department" validate:"max=120"`
	Role       Role   `json:"role" validate:"omitempty,oneof=admin editor staff"`
	Password   string `json:"password" validate:"max=256"`
}

type UpdateUserRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=120"`
	Department *string `json:"department" validate:"omitempty,max=120"`
	Role       *Role   `json:"role" validate:"omitempty,oneof=admin editor staff"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}
