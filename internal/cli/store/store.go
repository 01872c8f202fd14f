// Package store — локальная коллекция записей текущего пользователя.
// Это единственный владелец состояния в процессе: синхронизация, кэш и CLI
// работают только через его методы и подписки.
package store

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"Taskly/internal/record"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateID  = errors.New("duplicate record id")
	ErrUserMismatch = errors.New("user changed during operation")
	ErrNoUser       = errors.New("no active user")
)

// Op — вид изменения коллекции.
type Op string

const (
	OpAdded   Op = "added"
	OpUpdated Op = "updated"
	OpRemoved Op = "removed"
	OpReset   Op = "reset"
)

// Origin — источник изменения.
type Origin string

const (
	OriginLocal   Origin = "local"   // действие пользователя, подлежит отправке на сервер
	OriginRemote  Origin = "remote"  // результат pull или ответа сервера
	OriginCache   Origin = "cache"   // восстановление из офлайн-кэша
	OriginSession Origin = "session" // смена пользователя
)

// Event передаётся подписчикам после фиксации изменения.
// Для OpReset заполнено Records (снимок всей коллекции), для остальных — Record.
type Event struct {
	Op      Op
	Origin  Origin
	UserID  string
	Record  record.Record
	Records []record.Record
	At      time.Time
}

// Filter — условия выборки для List и представлений. Пустые поля не фильтруют.
type Filter struct {
	Kind      record.Kind
	Completed *bool
	// Date — точная дата YYYY-MM-DD либо record.NoDateBucket.
	Date string
}

func (f Filter) match(r record.Record) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Completed != nil && r.Completed != *f.Completed {
		return false
	}
	if f.Date != "" {
		if f.Date == record.NoDateBucket {
			if r.StartDate != nil {
				if _, err := time.Parse(record.DateLayout, *r.StartDate); err == nil {
					return false
				}
			}
		} else if r.StartDate == nil || *r.StartDate != f.Date {
			return false
		}
	}
	return true
}

// MergeResult — итог слияния удалённого набора с локальным.
type MergeResult struct {
	Added   int
	Updated int
	Removed int
	// Kept — локальные записи, оставленные вопреки серверу (не отправлены или новее).
	Kept int
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) { s.log = l }
}

// Store хранит записи одного пользователя в порядке вставки.
//
// Мутации сериализованы mu. Подписчики вызываются синхронно после фиксации,
// вне mu, но под notifyMu, поэтому видят события строго в порядке фиксации.
// Подписчик может читать Store, но не должен синхронно его изменять.
type Store struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	user  string
	items map[string]record.Record
	order []string

	// dirty — локально изменённые и ещё не подтверждённые сервером записи,
	// tombstones — локально удалённые. Pull не трогает ни те, ни другие.
	dirty      map[string]struct{}
	tombstones map[string]struct{}

	observers map[int]func(Event)
	nextObs   int

	now func() time.Time
	log *zap.SugaredLogger
}

// New создаёт пустой Store без пользователя.
func New(opts ...Option) *Store {
	s := &Store{
		items:      make(map[string]record.Record),
		dirty:      make(map[string]struct{}),
		tombstones: make(map[string]struct{}),
		observers:  make(map[int]func(Event)),
		now:        time.Now,
		log:        zap.NewNop().Sugar(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Subscribe регистрирует наблюдателя и возвращает функцию отписки.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// commit вызывается с захваченным mu: отпускает его и рассылает события.
func (s *Store) commit(events ...Event) {
	if len(events) == 0 {
		s.mu.Unlock()
		return
	}
	keys := make([]int, 0, len(s.observers))
	for k := range s.observers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	obs := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		obs = append(obs, s.observers[k])
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, ev := range events {
		for _, fn := range obs {
			fn(ev)
		}
	}
}

func (s *Store) event(op Op, origin Origin, r record.Record) Event {
	return Event{Op: op, Origin: origin, UserID: s.user, Record: r.Clone(), At: s.now()}
}

func (s *Store) resetEvent(origin Origin) Event {
	return Event{Op: OpReset, Origin: origin, UserID: s.user, Records: s.snapshotLocked(), At: s.now()}
}

// stamp возвращает время изменения строго позже prev (с точностью до микросекунд).
func (s *Store) stamp(prev time.Time) time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}

// SetUser переключает текущего пользователя. При смене личности коллекция
// (включая незавершённые изменения) очищается.
func (s *Store) SetUser(userID string) {
	s.mu.Lock()
	if s.user == userID {
		s.mu.Unlock()
		return
	}
	prev := s.user
	s.user = userID
	s.clearLocked()
	s.log.Infow("store user changed", "from", prev, "to", userID)
	s.commit(s.resetEvent(OriginSession))
}

func (s *Store) clearLocked() {
	s.items = make(map[string]record.Record)
	s.order = nil
	s.dirty = make(map[string]struct{})
	s.tombstones = make(map[string]struct{})
}

// User возвращает текущего пользователя ("" — нет сессии).
func (s *Store) User() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Add вставляет новую запись. Запись валидируется, владелец проставляется
// текущим пользователем, пустые createdAt/updatedAt заполняются текущим временем.
func (s *Store) Add(r record.Record) (record.Record, error) {
	if err := r.Validate(); err != nil {
		return record.Record{}, err
	}
	s.mu.Lock()
	if s.user == "" {
		s.mu.Unlock()
		return record.Record{}, ErrNoUser
	}
	if _, ok := s.items[r.ID]; ok {
		s.mu.Unlock()
		return record.Record{}, fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
	}
	r = r.Clone()
	r.OwnerID = s.user
	if r.Kind == "" {
		r.Kind = record.KindTask
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.stamp(time.Time{})
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if r.UpdatedAt.IsZero() || r.UpdatedAt.Before(r.CreatedAt) {
		r.UpdatedAt = r.CreatedAt
	}
	r.UpdatedAt = r.UpdatedAt.UTC()

	s.items[r.ID] = r
	s.order = append(s.order, r.ID)
	s.dirty[r.ID] = struct{}{}
	delete(s.tombstones, r.ID)
	s.commit(s.event(OpAdded, OriginLocal, r))
	return r.Clone(), nil
}

// Update применяет частичное обновление и сдвигает updatedAt. При ошибке состояние не меняется.
func (s *Store) Update(id string, p record.Partial) (record.Record, error) {
	s.mu.Lock()
	cur, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return record.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := p.Apply(cur)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return record.Record{}, err
	}
	next.UpdatedAt = s.stamp(cur.UpdatedAt)
	s.items[id] = next
	s.dirty[id] = struct{}{}
	s.commit(s.event(OpUpdated, OriginLocal, next))
	return next.Clone(), nil
}

// ToggleCompleted инвертирует completed (для заметок — isPinned).
func (s *Store) ToggleCompleted(id string) (record.Record, error) {
	// чтение и запись под одной блокировкой, чтобы два toggle не склеились
	s.mu.Lock()
	cur, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return record.Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	done := !cur.Completed
	next := record.Partial{Completed: &done}.Apply(cur)
	next.UpdatedAt = s.stamp(cur.UpdatedAt)
	s.items[id] = next
	s.dirty[id] = struct{}{}
	s.commit(s.event(OpUpdated, OriginLocal, next))
	return next.Clone(), nil
}

// Remove удаляет запись и запоминает её как удалённую до подтверждения сервером.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	cur, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.removeLocked(id)
	s.tombstones[id] = struct{}{}
	s.commit(s.event(OpRemoved, OriginLocal, cur))
	return nil
}

func (s *Store) removeLocked(id string) {
	delete(s.items, id)
	delete(s.dirty, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// Get возвращает копию записи.
func (s *Store) Get(id string) (record.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return record.Record{}, false
	}
	return r.Clone(), true
}

// Len — количество записей.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// List возвращает копии записей в порядке вставки.
func (s *Store) List(f Filter) []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record.Record, 0, len(s.order))
	for _, id := range s.order {
		if r := s.items[id]; f.match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *Store) snapshotLocked() []record.Record {
	out := make([]record.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id].Clone())
	}
	return out
}

// Sorted — записи, отсортированные по startDate (без даты — в конце).
func (s *Store) Sorted(f Filter) []record.Record {
	return record.SortByDate(s.List(f))
}

// ByDate — записи, разложенные по точной дате.
func (s *Store) ByDate(f Filter) map[string][]record.Record {
	return record.GroupByExactDate(s.List(f))
}

// Days — записи по дням в хронологическом порядке.
func (s *Store) Days(f Filter) []record.Day {
	return record.ExtractDays(s.List(f))
}

// Pending возвращает идентификаторы неподтверждённых изменений и удалений.
func (s *Store) Pending() (dirty, tombstones []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.dirty {
		dirty = append(dirty, id)
	}
	for id := range s.tombstones {
		tombstones = append(tombstones, id)
	}
	slices.Sort(dirty)
	slices.Sort(tombstones)
	return dirty, tombstones
}

// Replace целиком заменяет коллекцию серверным набором, отбрасывая
// незавершённые локальные изменения.
func (s *Store) Replace(userID string, records []record.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	if s.user == "" || s.user != userID {
		s.mu.Unlock()
		return ErrUserMismatch
	}
	s.clearLocked()
	for _, r := range records {
		if _, dup := s.items[r.ID]; dup {
			continue
		}
		r = r.Clone()
		r.OwnerID = userID
		s.items[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	s.commit(s.resetEvent(OriginRemote))
	return nil
}

// Merge сливает полный серверный набор с локальной коллекцией.
// Сервер авторитетен, кроме записей, изменённых локально и ещё не отправленных
// (dirty), локально удалённых (tombstones) и записей, чей updatedAt новее серверного.
// Записи, которых нет на сервере, удаляются, если они не dirty и не перечислены в keep
// (keep — ids, которые сервер вернул, но они не прошли валидацию).
// Порядок после слияния — порядок сервера, затем оставленные локальные записи.
func (s *Store) Merge(userID string, remote []record.Record, keep []string) (MergeResult, error) {
	s.mu.Lock()
	if s.user == "" || s.user != userID {
		s.mu.Unlock()
		return MergeResult{}, ErrUserMismatch
	}

	var res MergeResult
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	items := make(map[string]record.Record, len(remote))
	order := make([]string, 0, len(remote)+len(s.dirty))
	for _, r := range remote {
		if _, seen := items[r.ID]; seen {
			continue
		}
		if _, gone := s.tombstones[r.ID]; gone {
			continue
		}
		local, exists := s.items[r.ID]
		_, dirty := s.dirty[r.ID]
		switch {
		case exists && (dirty || local.UpdatedAt.After(r.UpdatedAt)):
			items[r.ID] = local
			res.Kept++
		default:
			r = r.Clone()
			r.OwnerID = userID
			items[r.ID] = r
			if !exists {
				res.Added++
			} else if !reflect.DeepEqual(local, r) {
				res.Updated++
			}
		}
		order = append(order, r.ID)
	}
	for _, id := range s.order {
		if _, ok := items[id]; ok {
			continue
		}
		_, dirty := s.dirty[id]
		_, kept := keepSet[id]
		if dirty || kept {
			items[id] = s.items[id]
			order = append(order, id)
			res.Kept++
			continue
		}
		res.Removed++
	}

	s.items = items
	s.order = order
	s.log.Infow("store merged remote set",
		"user", userID, "added", res.Added, "updated", res.Updated, "removed", res.Removed, "kept", res.Kept)
	s.commit(s.resetEvent(OriginRemote))
	return res, nil
}

// ApplyRemote принимает серверную копию записи (например, ответ 409 при отправке)
// и снимает с неё отметку dirty. Локально удалённые записи не воскрешаются,
// локальная копия с более поздним updatedAt остаётся.
func (s *Store) ApplyRemote(userID string, r record.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.user == "" || s.user != userID {
		s.mu.Unlock()
		return ErrUserMismatch
	}
	if _, gone := s.tombstones[r.ID]; gone {
		s.mu.Unlock()
		return nil
	}
	r = r.Clone()
	r.OwnerID = userID
	op := OpUpdated
	if local, ok := s.items[r.ID]; ok && local.UpdatedAt.After(r.UpdatedAt) {
		s.mu.Unlock()
		return nil
	} else if !ok {
		op = OpAdded
		s.order = append(s.order, r.ID)
	}
	s.items[r.ID] = r
	delete(s.dirty, r.ID)
	s.commit(s.event(op, OriginRemote, r))
	return nil
}

// Settle снимает отметку незавершённого изменения после успешной отправки.
// version — updatedAt отправленной версии: если запись с тех пор менялась,
// отметка остаётся. Для удалённых записей снимается tombstone.
func (s *Store) Settle(userID, id string, version time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == "" || s.user != userID {
		return ErrUserMismatch
	}
	if r, ok := s.items[id]; ok {
		if !r.UpdatedAt.After(version) {
			delete(s.dirty, id)
		}
		return nil
	}
	delete(s.tombstones, id)
	return nil
}

// Restore гидратирует коллекцию из офлайн-кэша вместе с отметками незавершённых изменений.
func (s *Store) Restore(userID string, records []record.Record, dirty, tombstones []string) error {
	if userID == "" {
		return ErrNoUser
	}
	s.mu.Lock()
	s.user = userID
	s.clearLocked()
	for _, r := range records {
		if _, dup := s.items[r.ID]; dup {
			continue
		}
		r = r.Clone()
		r.OwnerID = userID
		s.items[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	for _, id := range dirty {
		if _, ok := s.items[id]; ok {
			s.dirty[id] = struct{}{}
		}
	}
	for _, id := range tombstones {
		if _, ok := s.items[id]; !ok {
			s.tombstones[id] = struct{}{}
		}
	}
	s.log.Infow("store restored from cache",
		"user", userID, "records", len(s.order), "dirty", len(s.dirty), "tombstones", len(s.tombstones))
	s.commit(s.resetEvent(OriginCache))
	return nil
}
