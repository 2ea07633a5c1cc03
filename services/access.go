package services

import (
	"fabrikaProject/models"

	"github.com/google/uuid"
)

// CanView сообщает, видит ли пользователь проект.
// Администратор видит все. Остальные видят проект, если он открыт их отделу
// или если они явно добавлены в участники.
func CanView(user *models.User, project *models.Project, members []models.ProjectMember) bool {
	if user == nil || project == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	if project.Access.Allows(user.Department) {
		return true
	}
	for _, m := range members {
		if m.ProjectID == project.ID && m.UserID == user.ID {
			return true
		}
	}
	return false
}

// VisibleProjects отбирает проекты, которые видит пользователь, сохраняя исходный порядок
func VisibleProjects(user *models.User, projects []models.Project, members []models.ProjectMember) []models.Project {
	visible := make([]models.Project, 0, len(projects))
	if user == nil {
		return visible
	}

	memberOf := make(map[uuid.UUID]bool)
	for _, m := range members {
		if m.UserID == user.ID {
			memberOf[m.ProjectID] = true
		}
	}

	for _, p := range projects {
		if user.IsAdmin() || p.Access.Allows(user.Department) || memberOf[p.ID] {
			visible = append(visible, p)
		}
	}
	return visible
}
