// Package reconcile поддерживает согласованное представление коллекции заказов
// по непрерывному потоку её снимков.
//
// Каждая эмиссия потока — полный снимок коллекции. Разделы pending/reviewed
// перестраиваются с нуля на каждом снимке: корректность обеспечивается
// пересчётом от авторитетного состояния, а не патчами предыдущего.
package reconcile

import (
	"sync"
	"time"

	"github.com/mmeshcher/order-alert-system/internal/model"
)

// Reconciler хранит состояние одной сессии панели: разделы заказов,
// максимальную наблюдавшуюся метку времени и счётчик непросмотренных.
// Экземпляр создаётся на аутентифицированную сессию и не является синглтоном.
type Reconciler struct {
	mu sync.RWMutex

	pending  []model.Order
	reviewed []model.Order

	watermark time.Time
	unseen    int
	first     bool
	loaded    bool
}

// View — согласованный срез состояния для слоя представления.
type View struct {
	Pending   []model.Order
	Reviewed  []model.Order
	Unseen    int
	Watermark time.Time
	Loaded    bool
}

// New создаёт Reconciler в исходном состоянии: пустые разделы, нулевая
// метка времени, первый снимок ещё не получен.
func New() *Reconciler {
	return &Reconciler{first: true}
}

// Apply обрабатывает очередную эмиссию потока.
//
// Каждый заказ нормализуется и попадает ровно в один из разделов по флагу
// Reviewed. Начиная со второго снимка каждый заказ с меткой времени строго
// больше текущей прибавляет единицу к счётчику непросмотренных. Первый
// снимок — базовая линия, его содержимое новыми заказами не считается.
// Метка времени после обработки равна максимуму из наблюдавшихся и никогда
// не убывает.
func (r *Reconciler) Apply(orders []model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]model.Order, 0, len(orders))
	reviewed := make([]model.Order, 0)

	arrived := 0
	maxSeen := r.watermark

	for _, raw := range orders {
		o := raw.Normalized()

		if o.Reviewed {
			reviewed = append(reviewed, o)
		} else {
			pending = append(pending, o)
		}

		if !r.first && o.CreatedAt.After(r.watermark) {
			arrived++
		}

		if o.CreatedAt.After(maxSeen) {
			maxSeen = o.CreatedAt
		}
	}

	r.pending = pending
	r.reviewed = reviewed
	r.unseen += arrived
	r.watermark = maxSeen
	r.first = false
	r.loaded = true
}

// Bump увеличивает счётчик непросмотренных на n. Используется для живых
// пуш-событий, полученных, пока панель находится на переднем плане.
func (r *Reconciler) Bump(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.unseen += n
	r.mu.Unlock()
}

// Acknowledge сбрасывает счётчик непросмотренных. Разделы и метка времени
// не меняются.
func (r *Reconciler) Acknowledge() {
	r.mu.Lock()
	r.unseen = 0
	r.mu.Unlock()
}

// Invalidate переводит состояние в «не загружено» после ошибки потока.
// Накопленные метка времени и счётчик сохраняются до конца сессии.
func (r *Reconciler) Invalidate() {
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()
}

// View возвращает копию текущего состояния.
func (r *Reconciler) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := View{
		Pending:   make([]model.Order, len(r.pending)),
		Reviewed:  make([]model.Order, len(r.reviewed)),
		Unseen:    r.unseen,
		Watermark: r.watermark,
		Loaded:    r.loaded,
	}
	copy(v.Pending, r.pending)
	copy(v.Reviewed, r.reviewed)
	return v
}

// UnseenCount возвращает число заказов, наблюдавшихся как новые с момента
// последнего подтверждения.
func (r *Reconciler) UnseenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unseen
}

// Watermark возвращает максимальную наблюдавшуюся метку времени создания.
func (r *Reconciler) Watermark() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.watermark
}

// Loaded сообщает, получен ли хотя бы один снимок и жив ли поток.
func (r *Reconciler) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}
