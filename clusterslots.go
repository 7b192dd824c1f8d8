package glide

import (
	"fmt"
	"strconv"

	"github.com/valkeyglide/go-core/internal/resp"
)

// parseClusterSlots decodes a CLUSTER SLOTS reply into shards and a
// flattened node-by-address map. Each top-level element is
// [start, end, [primary_ip, primary_port, ...], [replica_ip, replica_port, ...], ...]
// per the server's documented reply shape (§4.4).
func parseClusterSlots(val resp.Value) ([]*shard, map[string]*node, error) {
	if val.Kind != resp.KindArray {
		return nil, nil, fmt.Errorf("glide: CLUSTER SLOTS: unexpected reply kind %q", byte(val.Kind))
	}

	shards := make([]*shard, 0, len(val.Elems))
	byAddr := make(map[string]*node)

	for _, entry := range val.Elems {
		if entry.Kind != resp.KindArray || len(entry.Elems) < 3 {
			return nil, nil, fmt.Errorf("glide: CLUSTER SLOTS: malformed slot range entry")
		}

		start, err := asInt(entry.Elems[0])
		if err != nil {
			return nil, nil, err
		}
		end, err := asInt(entry.Elems[1])
		if err != nil {
			return nil, nil, err
		}

		primary, err := asNode(entry.Elems[2], RolePrimary, byAddr)
		if err != nil {
			return nil, nil, err
		}

		s := &shard{startSlot: start, endSlot: end, primary: primary}
		for _, replicaEntry := range entry.Elems[3:] {
			replica, err := asNode(replicaEntry, RoleReplica, byAddr)
			if err != nil {
				return nil, nil, err
			}
			s.replicas = append(s.replicas, replica)
		}
		shards = append(shards, s)
	}

	return shards, byAddr, nil
}

func asInt(v resp.Value) (int, error) {
	r, err := v.Result()
	if err != nil {
		return 0, err
	}
	switch n := r.(type) {
	case int64:
		return int(n), nil
	case []byte:
		return strconv.Atoi(string(n))
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("glide: CLUSTER SLOTS: expected integer slot bound, got %T", r)
	}
}

func asNode(v resp.Value, role NodeRole, byAddr map[string]*node) (*node, error) {
	if v.Kind != resp.KindArray || len(v.Elems) < 2 {
		return nil, fmt.Errorf("glide: CLUSTER SLOTS: malformed node entry")
	}
	ip, err := asString(v.Elems[0])
	if err != nil {
		return nil, err
	}
	port, err := asInt(v.Elems[1])
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", ip, port)

	if existing, ok := byAddr[addr]; ok {
		return existing, nil
	}
	n := &node{addr: addr, role: role}
	byAddr[addr] = n
	return n, nil
}

func asString(v resp.Value) (string, error) {
	r, err := v.Result()
	if err != nil {
		return "", err
	}
	switch s := r.(type) {
	case []byte:
		return string(s), nil
	case string:
		return s, nil
	default:
		return "", fmt.Errorf("glide: CLUSTER SLOTS: expected string, got %T", r)
	}
}
