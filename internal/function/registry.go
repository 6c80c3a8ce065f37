package function

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/serverledge-faas/gpu-dispatch/utils"
)

// The registry keeps a local copy of every known function and, when etcd is
// reachable, persists definitions there so that restarts and other workers
// see them. The dispatch path only ever reads the local copy.

var localMu sync.RWMutex
var localFunctions = make(map[string]*Function)

func getEtcdKey(fqdn string) string {
	return fmt.Sprintf("/function/%s", fqdn)
}

func persistence() bool {
	return config.GetBool(config.REGISTRY_PERSISTENCE, true)
}

// Save registers (or updates) a function.
func (f *Function) Save() error {
	localMu.Lock()
	localFunctions[f.FQDN()] = f
	localMu.Unlock()

	if !persistence() {
		return nil
	}

	cli, err := utils.GetEtcdClient()
	if err != nil {
		log.Printf("Function %s registered locally only: %v", f, err)
		return nil
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("could not marshal function %s: %v", f, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err = cli.Put(ctx, getEtcdKey(f.FQDN()), string(payload)); err != nil {
		return fmt.Errorf("failed etcd put for %s: %v", f, err)
	}
	return nil
}

// Get retrieves a Function given its fqdn. If it doesn't exist, returns false.
func Get(fqdn string) (*Function, bool) {
	localMu.RLock()
	f, found := localFunctions[fqdn]
	localMu.RUnlock()
	if found {
		copied := *f
		return &copied, true
	}

	if !persistence() {
		return nil, false
	}
	f, found = getFromEtcd(fqdn)
	if !found {
		return nil, false
	}
	localMu.Lock()
	localFunctions[fqdn] = f
	localMu.Unlock()
	return f, true
}

// Delete removes a function from the registry.
func Delete(fqdn string) error {
	localMu.Lock()
	delete(localFunctions, fqdn)
	localMu.Unlock()

	if !persistence() {
		return nil
	}

	cli, err := utils.GetEtcdClient()
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = cli.Delete(ctx, getEtcdKey(fqdn))
	return err
}

// List returns the fqdn of every locally known function, sorted.
func List() []string {
	localMu.RLock()
	defer localMu.RUnlock()

	names := make([]string, 0, len(localFunctions))
	for fqdn := range localFunctions {
		names = append(names, fqdn)
	}
	sort.Strings(names)
	return names
}

func getFromEtcd(fqdn string) (*Function, bool) {
	cli, err := utils.GetEtcdClient()
	if err != nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	getResponse, err := cli.Get(ctx, getEtcdKey(fqdn))
	if err != nil || len(getResponse.Kvs) < 1 {
		return nil, false
	}

	var f Function
	if err = json.Unmarshal(getResponse.Kvs[0].Value, &f); err != nil {
		log.Printf("Could not unmarshal function %s: %v", fqdn, err)
		return nil, false
	}
	return &f, true
}
