package main

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"primsim.ai/internal/protocol"
	"primsim.ai/internal/sim/world"
	"primsim.ai/internal/sim/world/logic/mathx"
)

// adminHandlers exposes local-only linkset operations for operators and
// tooling.
type adminHandlers struct {
	region *world.Region
	log    *log.Logger

	// snapshot writes an immediate snapshot and returns its tick.
	snapshot func() (uint64, error)
}

type partSpec struct {
	Pos  [3]float64 `json:"pos"`
	Rot  [4]float64 `json:"rot,omitempty"`
	Name string     `json:"name,omitempty"`
}

type createGroupReq struct {
	Parts []partSpec `json:"parts"`
}

type unlinkReq struct {
	// Mode is "one", "many" or "root".
	Mode    string   `json:"mode"`
	PartIDs []string `json:"part_ids,omitempty"`
}

type linkReq struct {
	Other string `json:"other"`
}

type partView struct {
	ID      string     `json:"id"`
	LocalID uint32     `json:"local_id"`
	LinkNum int        `json:"link_num"`
	Name    string     `json:"name"`
	Pos     [3]float64 `json:"pos"`
}

type groupView struct {
	ID    string     `json:"id"`
	Size  int        `json:"size"`
	Parts []partView `json:"parts"`
}

type errorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *adminHandlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/v1/state", h.local(h.state))
	mux.HandleFunc("POST /admin/v1/groups", h.local(h.createGroup))
	mux.HandleFunc("DELETE /admin/v1/groups/{id}", h.local(h.deleteGroup))
	mux.HandleFunc("POST /admin/v1/groups/{id}/unlink", h.local(h.unlink))
	mux.HandleFunc("POST /admin/v1/groups/{id}/link", h.local(h.link))
	mux.HandleFunc("POST /admin/v1/snapshot", h.local(h.takeSnapshot))
}

func (h *adminHandlers) local(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next(rw, r)
	}
}

func (h *adminHandlers) state(rw http.ResponseWriter, r *http.Request) {
	resp := struct {
		RegionID string      `json:"region_id"`
		Tick     uint64      `json:"tick"`
		Groups   []groupView `json:"groups"`
	}{RegionID: h.region.ID().String(), Tick: h.region.CurrentTick(), Groups: []groupView{}}
	for _, g := range h.region.Groups() {
		resp.Groups = append(resp.Groups, viewGroup(g))
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (h *adminHandlers) createGroup(rw http.ResponseWriter, r *http.Request) {
	var req createGroupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Parts) == 0 {
		writeErr(rw, http.StatusBadRequest, protocol.ErrBadRequest, "parts required")
		return
	}
	var g *world.Group
	for _, ps := range req.Parts {
		p := world.NewPart(uuid.New(), mathx.Pose{
			Pos: mathx.Vec3{X: ps.Pos[0], Y: ps.Pos[1], Z: ps.Pos[2]},
			Rot: mathx.Quat{X: ps.Rot[0], Y: ps.Rot[1], Z: ps.Rot[2], W: ps.Rot[3]}.Normalize(),
		})
		if ps.Name != "" {
			p.SetName(ps.Name)
		}
		if g == nil {
			g = world.NewGroup(p)
			continue
		}
		g.AddLink(p)
	}
	h.region.AddGroup(g)
	writeJSON(rw, http.StatusCreated, viewGroup(g))
}

func (h *adminHandlers) deleteGroup(rw http.ResponseWriter, r *http.Request) {
	g, ok := h.lookup(rw, r)
	if !ok {
		return
	}
	h.region.DeleteGroup(g)
	rw.WriteHeader(http.StatusNoContent)
}

func (h *adminHandlers) unlink(rw http.ResponseWriter, r *http.Request) {
	g, ok := h.lookup(rw, r)
	if !ok {
		return
	}
	var req unlinkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad json")
		return
	}
	ids := make([]uuid.UUID, 0, len(req.PartIDs))
	for _, s := range req.PartIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeErr(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad part id "+s)
			return
		}
		ids = append(ids, id)
	}

	var (
		res world.UnlinkResult
		err error
	)
	switch req.Mode {
	case "one":
		if len(ids) != 1 {
			writeErr(rw, http.StatusBadRequest, protocol.ErrBadRequest, "mode one takes exactly one part id")
			return
		}
		res, err = g.UnlinkOne(ids[0])
	case "many":
		res, err = g.UnlinkMany(ids)
	case "root":
		res, err = g.UnlinkRoot()
	default:
		writeErr(rw, http.StatusBadRequest, protocol.ErrBadRequest, "mode must be one, many or root")
		return
	}
	if err != nil {
		h.writeLinkErr(rw, err)
		return
	}
	resp := struct {
		Survivors groupView   `json:"survivors"`
		Detached  []groupView `json:"detached"`
	}{Survivors: viewGroup(res.Survivors)}
	for _, d := range res.Detached {
		resp.Detached = append(resp.Detached, viewGroup(d))
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (h *adminHandlers) link(rw http.ResponseWriter, r *http.Request) {
	g, ok := h.lookup(rw, r)
	if !ok {
		return
	}
	var req linkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad json")
		return
	}
	other, ok := h.findGroup(req.Other)
	if !ok {
		writeErr(rw, http.StatusNotFound, protocol.ErrNotFound, "no group "+req.Other)
		return
	}
	if err := g.Link(other); err != nil {
		h.writeLinkErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, viewGroup(g))
}

func (h *adminHandlers) takeSnapshot(rw http.ResponseWriter, r *http.Request) {
	if h.snapshot == nil {
		writeErr(rw, http.StatusServiceUnavailable, protocol.ErrRegionBusy, "snapshots disabled")
		return
	}
	tick, err := h.snapshot()
	if err != nil {
		writeErr(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
}

func (h *adminHandlers) lookup(rw http.ResponseWriter, r *http.Request) (*world.Group, bool) {
	id := r.PathValue("id")
	g, ok := h.findGroup(id)
	if !ok {
		writeErr(rw, http.StatusNotFound, protocol.ErrNotFound, "no group "+id)
	}
	return g, ok
}

// findGroup resolves a group by the id of its current root.
func (h *adminHandlers) findGroup(s string) (*world.Group, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, false
	}
	p, ok := h.region.FindPart(id)
	if !ok {
		return nil, false
	}
	g := p.Group()
	if g == nil || g.ID() != id {
		return nil, false
	}
	return g, true
}

func (h *adminHandlers) writeLinkErr(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, world.ErrGroupTooSmall), errors.Is(err, world.ErrGroupWouldBeEmpty):
		writeErr(rw, http.StatusConflict, protocol.ErrGroupTooSmall, err.Error())
	case errors.Is(err, world.ErrPartNotFound):
		writeErr(rw, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case errors.Is(err, world.ErrLinksetTooLarge):
		writeErr(rw, http.StatusConflict, protocol.ErrTooManyLinks, err.Error())
	case errors.Is(err, world.ErrSameGroup):
		writeErr(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
	case errors.Is(err, world.ErrGroupDeleted):
		writeErr(rw, http.StatusConflict, protocol.ErrStale, err.Error())
	case errors.Is(err, world.ErrScriptSuspend):
		writeErr(rw, http.StatusServiceUnavailable, protocol.ErrRegionBusy, err.Error())
	default:
		h.log.Printf("admin: %v", err)
		writeErr(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
	}
}

func viewGroup(g *world.Group) groupView {
	v := groupView{ID: g.ID().String()}
	for _, p := range g.Parts() {
		abs := p.AbsolutePose()
		v.Parts = append(v.Parts, partView{
			ID:      p.ID().String(),
			LocalID: p.LocalID(),
			LinkNum: p.LinkNum(),
			Name:    p.Meta().Name,
			Pos:     [3]float64{abs.Pos.X, abs.Pos.Y, abs.Pos.Z},
		})
	}
	v.Size = len(v.Parts)
	return v
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeErr(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, errorResp{Code: code, Message: msg})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
