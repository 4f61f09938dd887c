// Command kernel wires up the hosted backend and walks through the core's
// end-to-end scenarios: page recycling, fair scheduling, synchronous IPC,
// comm-page transfer, an unknown-target send, page release on exit, and
// heap page allocation followed by shutdown. It stands in for the embedded
// target's rt0-invoked entry point, which this repository does not build a
// bootable image for.
package main

import (
	"os"
	"unsafe"

	"github.com/upvalue/otium-sub001/kernel/ipc"
	"github.com/upvalue/otium-sub001/kernel/kfmt"
	"github.com/upvalue/otium-sub001/kernel/mem"
	"github.com/upvalue/otium-sub001/kernel/mem/knownmem"
	"github.com/upvalue/otium-sub001/kernel/mem/pmm"
	"github.com/upvalue/otium-sub001/kernel/platform/fiberexec"
	"github.com/upvalue/otium-sub001/kernel/proc"
)

// Kernel is the process-wide aggregate: every global the core needs --
// the allocator, the known-memory table, the
// process table, the IPC engine and the active platform backend -- is
// constructed once here rather than scattered across package-level
// singletons.
type Kernel struct {
	Alloc   pmm.Allocator
	Known   knownmem.Table
	Procs   proc.Table
	IPC     ipc.Engine
	Backend *fiberexec.Backend
}

// New builds a Kernel over ramBytes of backing memory with room for
// capacity processes, wiring each component to the next in the same order
// the embedded entry point would: allocator, known-memory table, process
// table, then the platform backend, which installs itself as the table's
// switcher last.
func New(ramBytes, capacity int) *Kernel {
	arena := make([]byte, ramBytes)
	start := uintptr(unsafe.Pointer(&arena[0]))
	end := start + uintptr(len(arena))

	k := &Kernel{}
	k.Alloc.Init(start, end)
	k.Known.Init(&k.Alloc)
	k.Procs.Init(capacity, &k.Alloc, &k.Known)
	k.IPC.Table = &k.Procs
	k.Backend = fiberexec.New(&k.Procs)

	return k
}

func main() {
	kfmt.SetOutputSink(os.Stdout)

	pageRecycling()
	fairAlternation()
	synchronousIPC()
	commPageTransfer()
	unknownTarget()
	exitReleasesPages()
	allocPageAndShutdown()

	kfmt.Printf("all scenarios passed\n")
}

// pageRecycling is scenario 1: three pages freed by one owner and
// re-requested by another must come back as the same address set.
func pageRecycling() {
	k := New(256*int(mem.PageSize), 4)

	const ownerA, ownerB = pmm.OwnerID(10), pmm.OwnerID(11)

	first := map[pmm.PageAddress]bool{}
	for i := 0; i < 3; i++ {
		first[k.Alloc.Allocate(ownerA, 1)] = true
	}

	k.Alloc.FreeAllOwnedBy(ownerA)

	second := map[pmm.PageAddress]bool{}
	for i := 0; i < 3; i++ {
		second[k.Alloc.Allocate(ownerB, 1)] = true
	}

	if len(first) != len(second) {
		kfmt.Printf("page recycling: FAILED (set size mismatch)\n")
		return
	}
	for addr := range first {
		if !second[addr] {
			kfmt.Printf("page recycling: FAILED (address %v not recycled)\n", addr)
			return
		}
	}
	kfmt.Printf("page recycling: ok\n")
}

// fairAlternation is scenario 2: two kernel-mode processes print "A\n" and
// "B\n" respectively, yielding after each line; the first eight bytes of
// console output must read "A\nB\nA\nB\n".
func fairAlternation() {
	k := New(64*int(mem.PageSize), 4)

	out := make([]byte, 0, 8)
	done := make(chan struct{})

	a := k.Procs.Create("a", 0, nil, true)
	b := k.Procs.Create("b", 0, nil, true)

	print := func(s string) {
		for i := 0; i < len(s); i++ {
			out = append(out, s[i])
		}
	}

	k.Backend.Spawn(a, func(p *proc.Process) {
		for i := 0; i < 2; i++ {
			print("A\n")
			k.Backend.Yield()
		}
		k.Backend.Exit()
	})
	k.Backend.Spawn(b, func(p *proc.Process) {
		for i := 0; i < 2; i++ {
			print("B\n")
			k.Backend.Yield()
		}
		k.Backend.Exit()
		close(done)
	})

	k.Backend.SwitchTo(a)
	<-done

	if string(out) != "A\nB\nA\nB\n" {
		kfmt.Printf("fair alternation: FAILED, got %q\n", out)
		return
	}
	kfmt.Printf("fair alternation: ok\n")
}

// synchronousIPC is scenario 3: a server receives a message and replies
// with input+1; the client must observe exactly that value.
func synchronousIPC() {
	k := New(64*int(mem.PageSize), 4)

	server := k.Procs.Create("server", 0, nil, true)
	client := k.Procs.Create("client", 0, nil, true)

	results := make(chan proc.Response, 1)

	k.Backend.Spawn(server, func(p *proc.Process) {
		msg := k.IPC.Recv()
		k.IPC.Reply(proc.Response{Error: proc.ErrNone, V0: msg.A0 + 1})
		k.Backend.Yield()
	})
	k.Backend.Spawn(client, func(p *proc.Process) {
		resp := k.IPC.Send(server.PID, 0, 1, 41, 0, 0)
		results <- resp
		k.Backend.Exit()
	})

	k.Backend.SwitchTo(client)
	resp := <-results

	if resp.Error != proc.ErrNone || resp.V0 != 42 {
		kfmt.Printf("synchronous ipc: FAILED, got %+v\n", resp)
		return
	}
	kfmt.Printf("synchronous ipc: ok\n")
}

// commPageTransfer is scenario 4: the client writes "ping" into its comm
// page and sends with both comm-data flags set; the server overwrites its
// own comm page with "pong", and the reply copies it back to the client.
func commPageTransfer() {
	k := New(64*int(mem.PageSize), 4)

	server := k.Procs.Create("server", 0, nil, true)
	client := k.Procs.Create("client", 0, nil, true)

	clientComm := unsafe.Slice((*byte)(unsafe.Pointer(client.CommPage.Raw())), mem.PageSize)
	copy(clientComm, []byte("ping"))

	done := make(chan struct{})

	k.Backend.Spawn(server, func(p *proc.Process) {
		k.IPC.Recv()

		serverComm := unsafe.Slice((*byte)(unsafe.Pointer(server.CommPage.Raw())), 4)
		if string(serverComm) != "ping" {
			kfmt.Printf("comm-page transfer: FAILED, server saw %q\n", serverComm)
		}
		copy(serverComm, []byte("pong"))

		k.IPC.Reply(proc.Response{Error: proc.ErrNone})
		k.Backend.Yield()
	})
	k.Backend.Spawn(client, func(p *proc.Process) {
		k.IPC.Send(server.PID, ipc.SendCommData|ipc.RecvCommData, 1, 0, 0, 0)
		close(done)
		k.Backend.Exit()
	})

	k.Backend.SwitchTo(client)
	<-done

	gotClientComm := unsafe.Slice((*byte)(unsafe.Pointer(client.CommPage.Raw())), 4)
	if string(gotClientComm) != "pong" {
		kfmt.Printf("comm-page transfer: FAILED, client read back %q\n", gotClientComm)
		return
	}
	kfmt.Printf("comm-page transfer: ok\n")
}

// unknownTarget is scenario 5: sending to a PID that was never issued must
// fail cleanly with no process left blocked.
func unknownTarget() {
	k := New(64*int(mem.PageSize), 4)

	client := k.Procs.Create("client", 0, nil, true)
	k.Procs.SetCurrent(client.Slot)

	resp := k.IPC.Send(proc.PID(0xDEADBEEF), 0, 1, 0, 0, 0)

	if resp.Error != proc.ErrPIDNotFound || client.HasPending || client.BlockedSender != 0 {
		kfmt.Printf("unknown target: FAILED, got %+v\n", resp)
		return
	}
	kfmt.Printf("unknown target: ok\n")
}

// exitReleasesPages is scenario 6: a process that allocates three pages and
// exits must return exactly three pages to the allocator. The process's
// own comm page (allocated unconditionally by Create) is accounted for
// separately: it is what actually tears down through Table.Exit here, via
// FreeAllOwnedBy, the same call Exit makes.
func exitReleasesPages() {
	k := New(64*int(mem.PageSize), 4)

	before := k.Alloc.Stats()

	p := k.Procs.Create("solo", 0, nil, true) // allocates 1 comm page
	k.Alloc.Allocate(p.Owner(), 1)
	k.Alloc.Allocate(p.Owner(), 1)
	k.Alloc.Allocate(p.Owner(), 1)

	k.Procs.Exit(p)
	after := k.Alloc.Stats()

	if after.Allocated != before.Allocated {
		kfmt.Printf("exit releases pages: FAILED, allocated %d -> %d\n", before.Allocated, after.Allocated)
		return
	}
	if after.FreedLifetime-before.FreedLifetime != 4 {
		kfmt.Printf("exit releases pages: FAILED, freed_lifetime delta %d\n", after.FreedLifetime-before.FreedLifetime)
		return
	}
	kfmt.Printf("exit releases pages: ok\n")
}

// allocPageAndShutdown is scenario 7: alloc_page() hands out a fresh
// physical page per call (the hosted target builds no address spaces, so
// each call returns a raw physical address rather than a mapped virtual
// one), and shutdown() reaps every live process back to its resting
// allocation.
func allocPageAndShutdown() {
	k := New(64*int(mem.PageSize), 4)

	before := k.Alloc.Stats()

	a := k.Procs.Create("a", 0, nil, true)
	k.Procs.Create("b", 0, nil, true)

	first := k.Procs.AllocPage(a)
	second := k.Procs.AllocPage(a)
	if first == 0 || second == 0 || first == second {
		kfmt.Printf("alloc_page and shutdown: FAILED, got %#x and %#x\n", first, second)
		return
	}

	k.Backend.Shutdown()

	after := k.Alloc.Stats()
	if after.Allocated != before.Allocated {
		kfmt.Printf("alloc_page and shutdown: FAILED, allocated %d -> %d\n", before.Allocated, after.Allocated)
		return
	}
	kfmt.Printf("alloc_page and shutdown: ok\n")
}
