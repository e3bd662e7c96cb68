package redis

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

// nsHook prefixes keys with the configured namespace. Only the commands the
// service issues are rewritten.
type nsHook struct {
	namespace string
}

func (h *nsHook) appendNamespace(key interface{}) string {
	k := fmt.Sprint(key)
	if strings.HasPrefix(k, h.namespace+":") {
		return k
	}
	return fmt.Sprintf("%s:%s", h.namespace, k)
}

func (h *nsHook) updateCmd(cmd redis.Cmder) {
	args := cmd.Args()
	if len(args) <= 1 {
		return
	}

	switch cmd.Name() {
	case "get", "set", "setex", "setnx", "getdel", "getex", "expire", "pexpire",
		"ttl", "pttl", "persist", "incr", "incrby", "decr", "decrby",
		"hget", "hset", "hdel", "hgetall":
		args[1] = h.appendNamespace(args[1])
	case "del", "unlink", "exists", "touch", "mget":
		for i := 1; i < len(args); i++ {
			args[i] = h.appendNamespace(args[i])
		}
	case "mset", "msetnx":
		for i := 1; i < len(args); i += 2 {
			args[i] = h.appendNamespace(args[i])
		}
	}
}

func (h *nsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *nsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if len(h.namespace) > 0 {
			h.updateCmd(cmd)
		}
		return next(ctx, cmd)
	}
}

func (h *nsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if len(h.namespace) > 0 {
			for _, c := range cmds {
				h.updateCmd(c)
			}
		}
		return next(ctx, cmds)
	}
}
