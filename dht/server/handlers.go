// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"net"

	"github.com/mxfetch/magnet2torrent/dht/krpc"
	"github.com/mxfetch/magnet2torrent/dht/node"
)

// queryHandlers is the static {method -> handler} table spec.md §9 calls
// for in place of duck-typed dispatch; every inbound query name is
// resolved here, and anything else is ignored per the failure model.
var queryHandlers = map[string]func(*Server, *net.UDPAddr, *krpc.Args) (*krpc.Return, *krpc.Error){
	krpc.MethodPing:         (*Server).handlePing,
	krpc.MethodFindNode:     (*Server).handleFindNode,
	krpc.MethodGetPeers:     (*Server).handleGetPeers,
	krpc.MethodAnnouncePeer: (*Server).handleAnnouncePeer,
}

func (s *Server) handleQuery(msg *krpc.Msg, addr *net.UDPAddr) {
	if msg.A != nil {
		s.admit(msg.A.ID, addr)
	}

	h, ok := queryHandlers[msg.Q]
	if !ok || msg.A == nil {
		return // queries without handlers are ignored silently
	}

	ret, kerr := h(s, addr, msg.A)
	reply := &krpc.Msg{T: msg.T}
	if kerr != nil {
		reply.Y = krpc.TypeError
		reply.E = kerr
	} else {
		reply.Y = krpc.TypeResponse
		reply.R = ret
	}
	data, err := reply.Encode()
	if err != nil {
		return
	}
	s.conn.WriteToUDP(data, addr)
}

func (s *Server) handlePing(addr *net.UDPAddr, args *krpc.Args) (*krpc.Return, *krpc.Error) {
	return &krpc.Return{ID: s.selfID}, nil
}

func (s *Server) handleFindNode(addr *net.UDPAddr, args *krpc.Args) (*krpc.Return, *krpc.Error) {
	neighbors := s.table.FindNeighbors(args.Target, s.config.K, nil)
	return &krpc.Return{ID: s.selfID, Nodes: node.EncodeCompactList(neighbors)}, nil
}

// handleGetPeers returns cached peers (values) when we have any for the
// info-hash, otherwise degrades to a find_node-shaped answer (nodes). A
// token is always minted so the caller may later announce_peer.
func (s *Server) handleGetPeers(addr *net.UDPAddr, args *krpc.Args) (*krpc.Return, *krpc.Error) {
	token, err := s.tokens.Issue(addr.IP.String(), args.ID, args.InfoHash)
	if err != nil {
		return nil, &krpc.Error{Code: krpc.ErrServer, Message: "failed to mint token"}
	}

	if peers := s.peers.GetPeers(args.InfoHash); len(peers) > 0 {
		values := make([][]byte, len(peers))
		for i, p := range peers {
			b := make([]byte, 6)
			copy(b, p[:])
			values[i] = b
		}
		return &krpc.Return{ID: s.selfID, Token: token, Values: values}, nil
	}

	neighbors := s.table.FindNeighbors(args.InfoHash, s.config.K, nil)
	return &krpc.Return{ID: s.selfID, Token: token, Nodes: node.EncodeCompactList(neighbors)}, nil
}

func (s *Server) handleAnnouncePeer(addr *net.UDPAddr, args *krpc.Args) (*krpc.Return, *krpc.Error) {
	if !s.tokens.Validate(args.Token, addr.IP.String(), args.InfoHash) {
		return nil, &krpc.Error{Code: krpc.ErrProtocol, Message: "invalid token"}
	}

	port := args.Port
	if args.ImpliedPort != 0 {
		port = addr.Port
	}
	peer, perr := node.NewCompactPeer(addr.IP, port)
	if perr != nil {
		return nil, &krpc.Error{Code: krpc.ErrProtocol, Message: "non-ipv4 announce"}
	}
	s.peers.InsertPeer(args.InfoHash, peer)
	return &krpc.Return{ID: s.selfID}, nil
}
