// Package service 包含了应用的业务逻辑层。
package service

import (
	"mockinterview-go/internal/model"
	"mockinterview-go/internal/repository"
)

// UserListResponse 定义了用户列表 API 的响应结构。
type UserListResponse struct {
	Content       []UserDetailResponse `json:"content"`
	TotalElements int64                `json:"totalElements"`
	TotalPages    int                  `json:"totalPages"`
	Size          int                  `json:"size"`
	Number        int                  `json:"number"`
}

// UserDetailResponse 定义了用户列表项的详细结构。
type UserDetailResponse struct {
	UserID    uint   `json:"userId"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

// DashboardStats 汇总一名学生的面试使用情况（供管理员总览）。
type DashboardStats struct {
	UserID         uint `json:"userId"`
	Username       string `json:"username"`
	TotalRecords   int  `json:"totalRecords"`
	TotalSessions  int  `json:"totalSessions"`
	CompletedCount int  `json:"completedCount"`
}

// AdminService 接口定义了管理员相关的业务操作：用户管理与跨用户的
// 使用情况总览（替代老师仓库中按组织标签划分的权限管理——本领域内
// 记录归属只按 user_id 判断，无组织层级概念，§9 未涉及）。
type AdminService interface {
	ListUsers(page, size int) (*UserListResponse, error)
	ListDashboard() ([]DashboardStats, error)
}

type adminService struct {
	userRepo    repository.UserRepository
	recordRepo  repository.RecordRepository
	sessionRepo repository.SessionRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(userRepo repository.UserRepository, recordRepo repository.RecordRepository, sessionRepo repository.SessionRepository) AdminService {
	return &adminService{userRepo: userRepo, recordRepo: recordRepo, sessionRepo: sessionRepo}
}

// ListUsers 以分页的形式返回用户列表。
func (s *adminService) ListUsers(page, size int) (*UserListResponse, error) {
	offset := (page - 1) * size
	users, total, err := s.userRepo.FindWithPagination(offset, size)
	if err != nil {
		return nil, err
	}

	userResponses := make([]UserDetailResponse, 0, len(users))
	for _, u := range users {
		userResponses = append(userResponses, UserDetailResponse{
			UserID:    u.ID,
			Username:  u.Username,
			Role:      u.Role,
			CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	totalPages := 0
	if total > 0 && size > 0 {
		totalPages = (int(total) + size - 1) / size
	}

	return &UserListResponse{
		Content:       userResponses,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}

// ListDashboard 为每个用户汇总记录数与会话完成情况。
func (s *adminService) ListDashboard() ([]DashboardStats, error) {
	users, err := s.userRepo.FindAll()
	if err != nil {
		return nil, err
	}

	stats := make([]DashboardStats, 0, len(users))
	for _, u := range users {
		records, err := s.recordRepo.ListByUser(u.ID)
		if err != nil {
			continue
		}
		sessions, err := s.sessionRepo.ListByUser(u.ID)
		if err != nil {
			continue
		}
		completed := 0
		for _, sess := range sessions {
			if sess.Status == model.SessionCompleted {
				completed++
			}
		}
		stats = append(stats, DashboardStats{
			UserID:         u.ID,
			Username:       u.Username,
			TotalRecords:   len(records),
			TotalSessions:  len(sessions),
			CompletedCount: completed,
		})
	}
	return stats, nil
}
