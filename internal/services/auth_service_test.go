package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic_inventory_backend/internal/database"
	"clinic_inventory_backend/internal/models"
	"clinic_inventory_backend/internal/repositories"
	"clinic_inventory_backend/pkg/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuthService(t *testing.T) AuthService {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuthService(repositories.NewAuthRepository(db), db, testSecret, time.Hour)
}

func TestRegisterBootstrapsFirstAdmin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	first, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "nurse", Password: "password1"}, "")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if first.Role != models.RoleAdmin {
		t.Fatalf("first user role = %s, want admin", first.Role)
	}

	if _, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "other", Password: "password1"}, models.RoleStaff); !errors.Is(err, ErrForbidden) {
		t.Fatalf("staff register err = %v, want ErrForbidden", err)
	}
	second, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "other", Password: "password1"}, models.RoleAdmin)
	if err != nil {
		t.Fatalf("admin register: %v", err)
	}
	if second.Role != models.RoleStaff {
		t.Fatalf("second user role = %s, want staff", second.Role)
	}
	if _, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "OTHER", Password: "password1"}, models.RoleAdmin); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("duplicate err = %v, want ErrUsernameExists", err)
	}
	if _, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "x", Password: "short"}, models.RoleAdmin); !errors.Is(err, ErrValidation) {
		t.Fatalf("short password err = %v", err)
	}
	if _, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "y", Password: "password1", Role: "doctor"}, models.RoleAdmin); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("bad role err = %v", err)
	}
}

func TestLoginIssuesToken(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	user, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "nurse", Password: "password1"}, "")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	if _, err := svc.LoginUser(ctx, LoginRequest{Username: "nurse", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.LoginUser(ctx, LoginRequest{Username: "nobody", Password: "password1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}

	resp, err := svc.LoginUser(ctx, LoginRequest{Username: "Nurse", Password: "password1"})
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	claims, err := utils.ValidateToken([]byte(testSecret), resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != models.RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
	profile, err := svc.GetUserProfile(ctx, user.ID)
	if err != nil || profile.LastLogin == nil {
		t.Fatalf("profile = %+v, %v", profile, err)
	}
	if profile.PasswordHash != "" {
		t.Fatal("password hash leaked")
	}
}

func TestUpdateAndDeleteUsers(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	admin, _ := svc.RegisterUser(ctx, RegisterUserRequest{Username: "admin", Password: "password1"}, "")
	staff, err := svc.RegisterUser(ctx, RegisterUserRequest{Username: "staff", Password: "password1"}, models.RoleAdmin)
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	inactive := models.UserStatusInactive
	if _, err := svc.UpdateUser(ctx, staff.ID, UpdateUserRequest{Status: &inactive, Password: strPtr("newpassword")}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if _, err := svc.LoginUser(ctx, LoginRequest{Username: "staff", Password: "newpassword"}); !errors.Is(err, ErrUserInactive) {
		t.Fatalf("inactive login err = %v", err)
	}

	demote := models.RoleStaff
	if _, err := svc.UpdateUser(ctx, admin.ID, UpdateUserRequest{Role: &demote}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("demoting last admin err = %v", err)
	}

	users, err := svc.ListUsers(ctx, models.UserFilters{Role: "staff"})
	if err != nil || len(users) != 1 || users[0].ID != staff.ID {
		t.Fatalf("ListUsers = %+v, %v", users, err)
	}

	if err := svc.DeleteUser(ctx, admin.ID, admin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("self delete err = %v", err)
	}
	if err := svc.DeleteUser(ctx, staff.ID, admin.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := svc.DeleteUser(ctx, staff.ID, admin.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("repeat delete err = %v", err)
	}
}
