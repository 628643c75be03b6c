package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicknginx/backend/client"
)

// scriptedSelect 按标签前缀依次选择
func scriptedSelect(t *testing.T, picks ...string) (selectFunc, *[][]string) {
	var seen [][]string
	return func(label string, items []string) (int, error) {
		seen = append(seen, append([]string(nil), items...))
		if len(picks) == 0 {
			return 0, promptui.ErrInterrupt
		}
		want := picks[0]
		picks = picks[1:]
		for i, item := range items {
			if strings.HasPrefix(item, want) {
				return i, nil
			}
		}
		t.Fatalf("no menu item %q in %v", want, items)
		return 0, errors.New("unreachable")
	}, &seen
}

func TestMenu_StartFragmentThenStop(t *testing.T) {
	srv := startTestServer(t)

	var out bytes.Buffer
	sel, seen := scriptedSelect(t, "启动配置: yx_tob", "停止 Nginx", "退出")
	m := &menu{client: client.New(srv.url), out: &out, sel: sel}
	require.NoError(t, m.run(context.Background()))

	assert.Contains(t, out.String(), "运行中 (yx_tob)")
	assert.Contains(t, out.String(), "Nginx 已停止")
	assert.Contains(t, out.String(), "再见！")

	require.Len(t, *seen, 3)
	assert.Contains(t, (*seen)[0], "启动 Nginx")
	assert.Contains(t, (*seen)[1], "停止 Nginx")
	assert.Contains(t, (*seen)[1], "启动配置: yx_tob ✓")
	assert.Contains(t, (*seen)[2], "启动 Nginx")
}

func TestMenu_StatusThenInterrupt(t *testing.T) {
	srv := startTestServer(t)

	var out bytes.Buffer
	sel, _ := scriptedSelect(t, "Nginx 状态")
	m := &menu{client: client.New(srv.url), out: &out, sel: sel}
	require.NoError(t, m.run(context.Background()), "interrupt ends the menu quietly")
	assert.Contains(t, out.String(), "已停止")
}
