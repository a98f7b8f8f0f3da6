package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/normalize"
)

// fieldValues 是 defaults.not_found / defaults.field_missing 的解码目标。
// 指针为 nil 表示未配置（保留内置默认）。
type fieldValues struct {
	Title    *string `mapstructure:"title"`
	Year     *string `mapstructure:"year"`
	Rating   *string `mapstructure:"rating"`
	Genre    *string `mapstructure:"genre"`
	Country  *string `mapstructure:"country"`
	Director *string `mapstructure:"director"`
	Cast     *string `mapstructure:"cast"`
	Kind     *string `mapstructure:"kind"`
	CoverURL *string `mapstructure:"cover_url"`
	Plot     *string `mapstructure:"plot"`
	Synopsis *string `mapstructure:"synopsis"`
}

func (v fieldValues) toMap() (map[domain.Field]string, error) {
	if v.Title != nil {
		return nil, fmt.Errorf("title 不允许配置默认值（找不到或缺失时恒为原始查询）")
	}
	pairs := []struct {
		f domain.Field
		p *string
	}{
		{domain.FieldYear, v.Year},
		{domain.FieldRating, v.Rating},
		{domain.FieldGenre, v.Genre},
		{domain.FieldCountry, v.Country},
		{domain.FieldDirector, v.Director},
		{domain.FieldCast, v.Cast},
		{domain.FieldKind, v.Kind},
		{domain.FieldCoverURL, v.CoverURL},
		{domain.FieldPlot, v.Plot},
		{domain.FieldSynopsis, v.Synopsis},
	}
	out := make(map[domain.Field]string)
	for _, p := range pairs {
		if p.p != nil {
			out[p.f] = *p.p
		}
	}
	return out, nil
}

func decodeFieldValues(section string, in map[string]any) (map[domain.Field]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	var fv fieldValues
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &fv,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(in); err != nil {
		return nil, fmt.Errorf("defaults.%s 无效：%w", section, err)
	}
	m, err := fv.toMap()
	if err != nil {
		return nil, fmt.Errorf("defaults.%s 无效：%w", section, err)
	}
	return m, nil
}

// decodeDefaults 把配置里的覆盖项叠加到内置默认值上；未知字段名报错。
func decodeDefaults(dc DefaultsConfig) (normalize.Defaults, error) {
	nf, err := decodeFieldValues("not_found", dc.NotFound)
	if err != nil {
		return normalize.Defaults{}, err
	}
	fm, err := decodeFieldValues("field_missing", dc.FieldMissing)
	if err != nil {
		return normalize.Defaults{}, err
	}
	return normalize.BuiltinDefaults().With(nf, fm), nil
}
