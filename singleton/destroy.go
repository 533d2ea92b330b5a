package singleton

import (
	"fmt"
	"sync"

	"github.com/gocrud/beans/logging"
)

// disposableBeans 按注册顺序保存销毁回调
type disposableBeans struct {
	mu    sync.Mutex
	order []string
	beans map[string]DisposableBean
}

func (d *disposableBeans) put(name string, bean DisposableBean) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.beans == nil {
		d.beans = make(map[string]DisposableBean)
	}
	if _, exists := d.beans[name]; !exists {
		d.order = append(d.order, name)
	}
	d.beans[name] = bean
}

// take 移除并返回 name 的回调，保证每个回调只被取出一次
func (d *disposableBeans) take(name string) DisposableBean {
	d.mu.Lock()
	defer d.mu.Unlock()
	bean, ok := d.beans[name]
	if !ok {
		return nil
	}
	delete(d.beans, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return bean
}

func (d *disposableBeans) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneStrings(d.order)
}

func (d *disposableBeans) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = nil
	d.beans = nil
}

// RegisterDisposableBean 注册销毁回调；重复注册同名 bean 会替换回调但保留原顺序
func (r *Registry) RegisterDisposableBean(name string, bean DisposableBean) {
	r.disposables.put(name, bean)
}

// DisposableBeanNames 按注册顺序返回待销毁的 bean
func (r *Registry) DisposableBeanNames() []string {
	return r.disposables.names()
}

// DestroySingletons 销毁全部单例。
// 先拒绝新的创建，再按注册的逆序销毁，最后清空所有记录。
// 调用方需保证此时没有仍在进行的创建。
func (r *Registry) DestroySingletons() {
	names := r.disposables.names()
	r.logger.Debug("destroying singletons", logging.F("count", len(names)))

	r.inDestruction.Store(true)
	for i := len(names) - 1; i >= 0; i-- {
		r.DestroySingleton(names[i])
	}

	r.graph.Clear()
	r.clearSingletonCache()
}

func (r *Registry) clearSingletonCache() {
	r.singletons.Range(func(key, _ any) bool {
		r.singletons.Delete(key)
		return true
	})
	r.disposables.clear()
	r.singletonsChanged()
	r.inDestruction.Store(false)
}

// DestroySingleton 移除并销毁 name：依赖方先于它销毁，它包含的 bean 在它之后销毁
func (r *Registry) DestroySingleton(name string) {
	r.RemoveSingleton(name)
	r.destroyBean(name, r.disposables.take(name))
}

func (r *Registry) destroyBean(name string, bean DisposableBean) {
	dependents := r.graph.takeDependents(name)
	if len(dependents) > 0 {
		r.logger.Debug("destroying dependent beans first",
			logging.F("bean", name), logging.F("dependents", dependents))
	}
	for _, dependent := range dependents {
		r.DestroySingleton(dependent)
	}

	if bean != nil {
		if err := r.invokeDestroy(bean); err != nil {
			r.logger.Warn("destroy method on bean failed", logging.F("bean", name), logging.Err(err))
		}
	}

	for _, contained := range r.graph.takeContained(name) {
		r.DestroySingleton(contained)
	}

	r.graph.Remove(name)
}

// invokeDestroy 把 panic 转为 error，单个 bean 的失败不影响其余销毁
func (r *Registry) invokeDestroy(bean DisposableBean) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("destroy panicked: %v", p)
		}
	}()
	return bean.Destroy()
}
