package models

const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)
