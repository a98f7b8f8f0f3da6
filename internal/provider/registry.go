package provider

import (
	"fmt"
	"strings"
)

// Registry 是 provider 的只读注册表（按 name 索引，保留注册顺序用于回退）。
type Registry struct {
	byName map[string]Provider
	order  []string
}

func NewRegistry(providers ...Provider) (Registry, error) {
	byName := make(map[string]Provider, len(providers))
	order := make([]string, 0, len(providers))
	for _, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("provider 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(p.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("provider.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 provider：%q", name)
		}
		byName[name] = p
		order = append(order, name)
	}
	return Registry{byName: byName, order: order}, nil
}

func (r Registry) Get(name string) (Provider, bool) {
	if r.byName == nil {
		return nil, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	p, ok := r.byName[name]
	return p, ok
}

// Names 按注册顺序返回所有 provider 名。
func (r Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// fallbackOrder：requested 在前，其余按注册顺序。
func (r Registry) fallbackOrder(requested string) ([]string, error) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if _, ok := r.byName[requested]; !ok {
		return nil, fmt.Errorf("未知 provider：%q（可用：%s）", requested, strings.Join(r.order, ", "))
	}
	out := make([]string, 0, len(r.order))
	out = append(out, requested)
	for _, n := range r.order {
		if n != requested {
			out = append(out, n)
		}
	}
	return out, nil
}
