package services

import (
	"context"

	"fabrikaProject/database"
	"fabrikaProject/models"
	"fabrikaProject/utils"

	"github.com/google/uuid"
)

// unitOfWork сериализует изменения в пределах одного проекта.
// Изменение и каскадный пересчет выполняются в одной транзакции
// под блокировкой проекта, поэтому параллельные правки платежей
// одного договора не теряют обновлений.
type unitOfWork struct {
	repo  database.Repository
	locks *utils.KeyedMutex
}

func newUnitOfWork(repo database.Repository, locks *utils.KeyedMutex) unitOfWork {
	if locks == nil {
		locks = utils.NewKeyedMutex()
	}
	return unitOfWork{repo: repo, locks: locks}
}

// run выполняет fn под блокировкой проекта projectID.
// Отмена ctx после начала работы не прерывает ее: каскад всегда доходит до проекта.
func (u unitOfWork) run(ctx context.Context, projectID uuid.UUID, fn func(ctx context.Context, tx database.Repository, project *models.Project) error) error {
	ctx = context.WithoutCancel(ctx)

	unlock := u.locks.Lock(projectID.String())
	defer unlock()

	return u.repo.WithinTx(ctx, func(tx database.Repository) error {
		project, err := tx.LockProject(ctx, projectID)
		if err != nil {
			return notFound(err, ErrProjectNotFound)
		}
		return fn(ctx, tx, project)
	})
}
