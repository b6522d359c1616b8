package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/livemark/internal/resolve"
)

// Items carry their properties as a raw JSON object, so query results are
// assembled with sjson and read back with gjson rather than through
// encoding/json.

func encodeItems(items []resolve.Item) (string, error) {
	out := "[]"
	for _, it := range items {
		obj, err := sjson.Set("{}", "item_type", it.Type)
		if err != nil {
			return "", err
		}
		obj, _ = sjson.Set(obj, "id", it.ID)
		obj, _ = sjson.Set(obj, "path", it.Path)
		if it.Title != "" {
			obj, _ = sjson.Set(obj, "title", it.Title)
		}
		props := it.Props
		if props == "" || !gjson.Valid(props) {
			props = "{}"
		}
		if obj, err = sjson.SetRaw(obj, "properties", props); err != nil {
			return "", err
		}
		if out, err = sjson.SetRaw(out, "-1", obj); err != nil {
			return "", err
		}
	}
	return out, nil
}

func decodeItems(r gjson.Result) []resolve.Item {
	if !r.IsArray() {
		return nil
	}
	arr := r.Array()
	items := make([]resolve.Item, 0, len(arr))
	for _, v := range arr {
		props := v.Get("properties")
		raw := "{}"
		if props.IsObject() {
			raw = props.Raw
		}
		items = append(items, resolve.Item{
			Type:  resolve.ItemType(v.Get("item_type").String()),
			ID:    v.Get("id").Int(),
			Path:  v.Get("path").String(),
			Title: v.Get("title").String(),
			Props: raw,
		})
	}
	return items
}

func encodeQuery(res *resolve.QueryResult) (string, error) {
	items, err := encodeItems(res.Items)
	if err != nil {
		return "", err
	}
	out, _ := sjson.SetRaw("{}", "results", items)
	out, _ = sjson.Set(out, "total_count", res.TotalCount)
	if res.Error != "" {
		out, _ = sjson.Set(out, "error", res.Error)
	}
	if len(res.Tabs) > 0 {
		out, _ = sjson.SetRaw(out, "tab_results", "[]")
	}
	for _, tab := range res.Tabs {
		tabItems, err := encodeItems(tab.Items)
		if err != nil {
			return "", err
		}
		view, err := json.Marshal(tab.View)
		if err != nil {
			return "", err
		}
		obj, _ := sjson.Set("{}", "name", tab.Name)
		obj, _ = sjson.SetRaw(obj, "results", tabItems)
		obj, _ = sjson.Set(obj, "total_count", tab.TotalCount)
		obj, _ = sjson.SetRaw(obj, "view", string(view))
		if out, err = sjson.SetRaw(out, "tab_results.-1", obj); err != nil {
			return "", err
		}
	}
	return out, nil
}

func decodeQuery(r gjson.Result) (*resolve.QueryResult, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("%w: query result is %s", ErrBadResponse, r.Type)
	}
	res := &resolve.QueryResult{
		Items:      decodeItems(r.Get("results")),
		TotalCount: int(r.Get("total_count").Int()),
		Error:      r.Get("error").String(),
	}
	for _, t := range r.Get("tab_results").Array() {
		tab := resolve.TabResult{
			Name:       t.Get("name").String(),
			Items:      decodeItems(t.Get("results")),
			TotalCount: int(t.Get("total_count").Int()),
		}
		if v := t.Get("view"); v.IsObject() {
			if err := json.Unmarshal([]byte(v.Raw), &tab.View); err != nil {
				return nil, fmt.Errorf("%w: tab %q view: %v", ErrBadResponse, tab.Name, err)
			}
		}
		res.Tabs = append(res.Tabs, tab)
	}
	return res, nil
}

func decodeJSON[T any](r gjson.Result, what string) (*T, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("%w: %s result is %s", ErrBadResponse, what, r.Type)
	}
	var v T
	if err := json.Unmarshal([]byte(r.Raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadResponse, what, err)
	}
	return &v, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
