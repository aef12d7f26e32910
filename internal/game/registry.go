package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownGame 名称未注册，属于配置错误
	ErrUnknownGame = errors.New("game: unknown game")
	// ErrInvalidManifest Manifest 不合法或名称重复
	ErrInvalidManifest = errors.New("game: invalid manifest")
)

// Registry 名称 -> Validator。启动时显式构建并注入，不使用包级全局变量。
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// Register 校验 Manifest 后注册。名称为空、人数范围不合法或名称重复时返回 ErrInvalidManifest。
func (r *Registry) Register(v Validator) error {
	if v == nil {
		return fmt.Errorf("%w: nil validator", ErrInvalidManifest)
	}
	m := v.Manifest()
	name := strings.TrimSpace(m.Name)
	if name == "" || name != m.Name {
		return fmt.Errorf("%w: name %q", ErrInvalidManifest, m.Name)
	}
	if m.MinPlayers < 1 || m.MaxPlayers < m.MinPlayers {
		return fmt.Errorf("%w: %s player range %d..%d", ErrInvalidManifest, name, m.MinPlayers, m.MaxPlayers)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.validators[name]; exists {
		return fmt.Errorf("%w: %s registered twice", ErrInvalidManifest, name)
	}
	r.validators[name] = v
	return nil
}

// MustRegister 注册失败直接 panic，用于启动阶段
func (r *Registry) MustRegister(v Validator) {
	if err := r.Register(v); err != nil {
		panic(err)
	}
}

// Get 按名称查找 Validator，未注册时返回包含已知名称列表的 ErrUnknownGame。
func (r *Registry) Get(name string) (Validator, error) {
	r.mu.RLock()
	v, ok := r.validators[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known games: %s)", ErrUnknownGame, name, strings.Join(r.Names(), ", "))
	}
	return v, nil
}

// Names 返回排序后的已注册名称
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manifests 按名称排序返回全部 Manifest
func (r *Registry) Manifests() []Manifest {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Manifest, 0, len(names))
	for _, name := range names {
		out = append(out, r.validators[name].Manifest())
	}
	return out
}
