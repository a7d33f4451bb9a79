package network

import (
	"fmt"
	"sync"

	"github.com/AsynkronIT/protoactor-go/actor"

	"github.com/TopiaNetwork/aggregation/network/message"
)

// ModuleRouter maps module names to actor PIDs; every transport embeds one.
type ModuleRouter struct {
	sync     sync.RWMutex
	sysActor *actor.ActorSystem
	modPIDS  map[string]*actor.PID //module name -> actor PID
}

func NewModuleRouter(sysActor *actor.ActorSystem) *ModuleRouter {
	return &ModuleRouter{
		sysActor: sysActor,
		modPIDS:  make(map[string]*actor.PID),
	}
}

func (r *ModuleRouter) RegisterModule(moduleName string, pid *actor.PID) {
	r.sync.Lock()
	defer r.sync.Unlock()

	if _, ok := r.modPIDS[moduleName]; !ok {
		r.modPIDS[moduleName] = pid
	}
}

func (r *ModuleRouter) UnRegisterModule(moduleName string) {
	r.sync.Lock()
	defer r.sync.Unlock()

	delete(r.modPIDS, moduleName)
}

func (r *ModuleRouter) Dispatch(msg *message.NetworkMessage) error {
	r.sync.RLock()
	pid, ok := r.modPIDS[msg.ModuleName]
	r.sync.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, msg.ModuleName)
	}

	r.sysActor.Root.Send(pid, msg)

	return nil
}
