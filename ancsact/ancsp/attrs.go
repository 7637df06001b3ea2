/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package ancsp

import (
	"github.com/ancslink/ancslink/ancsact/ancsdefs"
)

// A decoded set of notification attributes.  A zero-length value is a real
// value; it is distinct from an attribute that was never decoded at all.
type AttrSet struct {
	vals map[ancsdefs.NotifAttrId]string
}

func NewAttrSet() *AttrSet {
	return &AttrSet{
		vals: map[ancsdefs.NotifAttrId]string{},
	}
}

func (s *AttrSet) set(id ancsdefs.NotifAttrId, val string) {
	s.vals[id] = val
}

// Retrieves one attribute.  The second return value distinguishes an empty
// attribute from an absent one.
func (s *AttrSet) Get(id ancsdefs.NotifAttrId) (string, bool) {
	v, ok := s.vals[id]
	return v, ok
}

func (s *AttrSet) Len() int {
	return len(s.vals)
}

func (s *AttrSet) Map() map[string]string {
	m := make(map[string]string, len(s.vals))
	for id, v := range s.vals {
		m[id.String()] = v
	}
	return m
}
