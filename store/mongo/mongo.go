/*
Package mongo provides a MongoDB-backed implementation of core.Store.

PURPOSE:
  The system this engine came from ran on a managed document database, so
  a document-store backend is the natural production target. Collections
  mirror the SQLite tables: users, tasks, incentives.

DUPLICATE KEY ENFORCEMENT:
  EnsureIndexes creates a unique compound index on
  (user_id, month, year) in the incentives collection. Driver duplicate-key
  errors are translated to core.ErrDuplicateIncentive, closing the
  concurrent-calculation race at the storage layer.

USAGE:
  client, err := mongo.Connect(options.Client().ApplyURI(uri))
  ...
  store := mongostore.New(client, "incentives")
  if err := store.EnsureIndexes(ctx); err != nil { ... }

SEE ALSO:
  - core/store.go: Interface definitions
  - store/sqlite: Relational implementation
*/
package mongo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/warp/incentive-engine/core"
)

const (
	collUsers      = "users"
	collTasks      = "tasks"
	collIncentives = "incentives"
)

// Store implements core.Store on a MongoDB database.
type Store struct {
	db *mongo.Database
}

var _ core.Store = (*Store)(nil)

func New(client *mongo.Client, database string) *Store {
	return &Store{db: client.Database(database)}
}

// EnsureIndexes creates the indexes the engine relies on, most importantly
// the unique (user_id, month, year) key on incentives.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(collIncentives).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "month", Value: 1},
			{Key: "year", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return core.WrapStorage("create incentive index", err)
	}

	_, err = s.db.Collection(collTasks).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "assigned_to", Value: 1},
			{Key: "status", Value: 1},
		},
	})
	if err != nil {
		return core.WrapStorage("create task index", err)
	}
	return nil
}

// =============================================================================
// DOCUMENT SHAPES - Decimals travel as strings
// =============================================================================

type requirementDoc struct {
	Label      string  `bson:"label"`
	Weight     string  `bson:"weight"`
	Completion *string `bson:"completion,omitempty"`
}

type taskDoc struct {
	ID              string           `bson:"_id"`
	Title           string           `bson:"title"`
	Description     string           `bson:"description,omitempty"`
	AssignedTo      string           `bson:"assigned_to"`
	AssignedBy      string           `bson:"assigned_by,omitempty"`
	DueDate         *time.Time       `bson:"due_date,omitempty"`
	Status          string           `bson:"status"`
	StatusComment   string           `bson:"status_comment,omitempty"`
	Requirements    []requirementDoc `bson:"requirements"`
	Rating          int              `bson:"rating,omitempty"`
	Evaluated       bool             `bson:"evaluated"`
	EvaluatedAt     *time.Time       `bson:"evaluated_at,omitempty"`
	TotalPercentage *string          `bson:"total_percentage,omitempty"`
	CreatedAt       time.Time        `bson:"created_at"`
	UpdatedAt       time.Time        `bson:"updated_at"`
	CompletedAt     *time.Time       `bson:"completed_at,omitempty"`
}

type userDoc struct {
	ID          string    `bson:"_id"`
	DisplayName string    `bson:"display_name"`
	Email       string    `bson:"email,omitempty"`
	Role        string    `bson:"role"`
	Salary      string    `bson:"salary"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type incentiveDoc struct {
	ID            string    `bson:"_id"`
	UserID        string    `bson:"user_id"`
	Month         string    `bson:"month"`
	Year          string    `bson:"year"`
	TaskCount     int       `bson:"task_count"`
	Formula       string    `bson:"formula"`
	TotalAmount   string    `bson:"total_amount"`
	Status        string    `bson:"status"`
	StatusComment string    `bson:"status_comment,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// =============================================================================
// TASK STORE
// =============================================================================

func (s *Store) CreateTask(ctx context.Context, task core.Task) error {
	if _, err := s.db.Collection(collTasks).InsertOne(ctx, toTaskDoc(task)); err != nil {
		return core.WrapStorage("create task", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id core.TaskID) (*core.Task, error) {
	var doc taskDoc
	err := s.db.Collection(collTasks).FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.WrapStorage("get task", err)
	}
	task, err := fromTaskDoc(doc)
	if err != nil {
		return nil, core.WrapStorage("get task", err)
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]core.Task, error) {
	return s.findTasks(ctx, bson.M{})
}

func (s *Store) ListTasksByAssignee(ctx context.Context, userID core.UserID) ([]core.Task, error) {
	return s.findTasks(ctx, bson.M{"assigned_to": string(userID)})
}

func (s *Store) ListCompletedTasks(ctx context.Context, userID core.UserID) ([]core.Task, error) {
	return s.findTasks(ctx, bson.M{
		"assigned_to": string(userID),
		"status":      string(core.TaskCompleted),
	})
}

func (s *Store) findTasks(ctx context.Context, filter bson.M) ([]core.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(collTasks).Find(ctx, filter, opts)
	if err != nil {
		return nil, core.WrapStorage("list tasks", err)
	}
	defer cursor.Close(ctx)

	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, core.WrapStorage("list tasks", err)
	}

	tasks := make([]core.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := fromTaskDoc(doc)
		if err != nil {
			return nil, core.WrapStorage("list tasks", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, task core.Task) error {
	res, err := s.db.Collection(collTasks).ReplaceOne(ctx,
		bson.M{"_id": string(task.ID)}, toTaskDoc(task))
	if err != nil {
		return core.WrapStorage("update task", err)
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id core.TaskID) error {
	res, err := s.db.Collection(collTasks).DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return core.WrapStorage("delete task", err)
	}
	if res.DeletedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

// =============================================================================
// USER DIRECTORY
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, user core.User) error {
	doc := userDoc{
		ID:          string(user.ID),
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        string(user.Role),
		Salary:      user.Salary.String(),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(collUsers).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return core.WrapStorage("save user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id core.UserID) (*core.User, error) {
	var doc userDoc
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.WrapStorage("get user", err)
	}
	u := fromUserDoc(doc)
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "display_name", Value: 1}})
	cursor, err := s.db.Collection(collUsers).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, core.WrapStorage("list users", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, core.WrapStorage("list users", err)
	}
	users := make([]core.User, 0, len(docs))
	for _, doc := range docs {
		users = append(users, fromUserDoc(doc))
	}
	return users, nil
}

// =============================================================================
// INCENTIVE STORE
// =============================================================================

func (s *Store) FindIncentive(ctx context.Context, userID core.UserID, period core.Period) (*core.Incentive, error) {
	var doc incentiveDoc
	err := s.db.Collection(collIncentives).FindOne(ctx, bson.M{
		"user_id": string(userID),
		"month":   period.Month,
		"year":    period.Year,
	}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapStorage("find incentive", err)
	}
	inc, err := fromIncentiveDoc(doc)
	if err != nil {
		return nil, core.WrapStorage("find incentive", err)
	}
	return inc, nil
}

func (s *Store) CreateIncentive(ctx context.Context, inc core.Incentive) error {
	doc := incentiveDoc{
		ID:            string(inc.ID),
		UserID:        string(inc.UserID),
		Month:         inc.Period.Month,
		Year:          inc.Period.Year,
		TaskCount:     inc.TaskCount,
		Formula:       inc.Formula,
		TotalAmount:   inc.TotalAmount.String(),
		Status:        string(inc.Status),
		StatusComment: inc.StatusComment,
		CreatedAt:     inc.CreatedAt,
		UpdatedAt:     inc.UpdatedAt,
	}
	if _, err := s.db.Collection(collIncentives).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &core.DuplicateIncentiveError{UserID: inc.UserID, Period: inc.Period}
		}
		return core.WrapStorage("create incentive", err)
	}
	return nil
}

func (s *Store) GetIncentive(ctx context.Context, id core.IncentiveID) (*core.Incentive, error) {
	var doc incentiveDoc
	err := s.db.Collection(collIncentives).FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, core.WrapStorage("get incentive", err)
	}
	inc, err := fromIncentiveDoc(doc)
	if err != nil {
		return nil, core.WrapStorage("get incentive", err)
	}
	return inc, nil
}

func (s *Store) ListIncentives(ctx context.Context) ([]core.Incentive, error) {
	return s.findIncentives(ctx, bson.M{})
}

func (s *Store) ListIncentivesByUser(ctx context.Context, userID core.UserID) ([]core.Incentive, error) {
	return s.findIncentives(ctx, bson.M{"user_id": string(userID)})
}

func (s *Store) findIncentives(ctx context.Context, filter bson.M) ([]core.Incentive, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(collIncentives).Find(ctx, filter, opts)
	if err != nil {
		return nil, core.WrapStorage("list incentives", err)
	}
	defer cursor.Close(ctx)

	var docs []incentiveDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, core.WrapStorage("list incentives", err)
	}
	incs := make([]core.Incentive, 0, len(docs))
	for _, doc := range docs {
		inc, err := fromIncentiveDoc(doc)
		if err != nil {
			return nil, core.WrapStorage("list incentives", err)
		}
		incs = append(incs, *inc)
	}
	return incs, nil
}

func (s *Store) UpdateIncentiveStatus(ctx context.Context, id core.IncentiveID, status core.IncentiveStatus, comment string) error {
	res, err := s.db.Collection(collIncentives).UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{
			"status":         string(status),
			"status_comment": comment,
			"updated_at":     time.Now().UTC(),
		}})
	if err != nil {
		return core.WrapStorage("update incentive status", err)
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

// =============================================================================
// DOCUMENT CONVERSION
// =============================================================================

func toTaskDoc(task core.Task) taskDoc {
	doc := taskDoc{
		ID:            string(task.ID),
		Title:         task.Title,
		Description:   task.Description,
		AssignedTo:    string(task.AssignedTo),
		AssignedBy:    string(task.AssignedBy),
		Status:        string(task.Status),
		StatusComment: task.StatusComment,
		Rating:        task.Rating,
		Evaluated:     task.Evaluated,
		EvaluatedAt:   task.EvaluatedAt,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
		CompletedAt:   task.CompletedAt,
	}
	if !task.DueDate.IsZero() {
		due := task.DueDate
		doc.DueDate = &due
	}
	if task.TotalPercentage != nil {
		s := task.TotalPercentage.String()
		doc.TotalPercentage = &s
	}
	doc.Requirements = make([]requirementDoc, len(task.Requirements))
	for i, r := range task.Requirements {
		doc.Requirements[i] = requirementDoc{Label: r.Label, Weight: r.Weight.String()}
		if r.Completion != nil {
			c := r.Completion.String()
			doc.Requirements[i].Completion = &c
		}
	}
	return doc
}

func fromTaskDoc(doc taskDoc) (*core.Task, error) {
	task := core.Task{
		ID:            core.TaskID(doc.ID),
		Title:         doc.Title,
		Description:   doc.Description,
		AssignedTo:    core.UserID(doc.AssignedTo),
		AssignedBy:    core.UserID(doc.AssignedBy),
		Status:        core.TaskStatus(doc.Status),
		StatusComment: doc.StatusComment,
		Rating:        doc.Rating,
		Evaluated:     doc.Evaluated,
		EvaluatedAt:   doc.EvaluatedAt,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		CompletedAt:   doc.CompletedAt,
	}
	if doc.DueDate != nil {
		task.DueDate = *doc.DueDate
	}
	if doc.TotalPercentage != nil {
		d, err := decimal.NewFromString(*doc.TotalPercentage)
		if err != nil {
			return nil, err
		}
		task.TotalPercentage = &d
	}
	task.Requirements = make([]core.Requirement, len(doc.Requirements))
	for i, r := range doc.Requirements {
		w, err := decimal.NewFromString(r.Weight)
		if err != nil {
			return nil, err
		}
		task.Requirements[i] = core.Requirement{Label: r.Label, Weight: w}
		if r.Completion != nil {
			c, err := decimal.NewFromString(*r.Completion)
			if err != nil {
				return nil, err
			}
			task.Requirements[i].Completion = &c
		}
	}
	return &task, nil
}

func fromUserDoc(doc userDoc) core.User {
	salary, err := decimal.NewFromString(doc.Salary)
	if err != nil {
		// Directory contract: absent or non-numeric salary reads as zero.
		salary = decimal.Zero
	}
	return core.User{
		ID:          core.UserID(doc.ID),
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		Role:        core.Role(doc.Role),
		Salary:      salary,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func fromIncentiveDoc(doc incentiveDoc) (*core.Incentive, error) {
	amount, err := decimal.NewFromString(doc.TotalAmount)
	if err != nil {
		return nil, err
	}
	return &core.Incentive{
		ID:            core.IncentiveID(doc.ID),
		UserID:        core.UserID(doc.UserID),
		Period:        core.Period{Month: doc.Month, Year: doc.Year},
		TaskCount:     doc.TaskCount,
		Formula:       doc.Formula,
		TotalAmount:   amount,
		Status:        core.IncentiveStatus(doc.Status),
		StatusComment: doc.StatusComment,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}
