// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import "fmt"

type credentials struct {
	user  string
	token string
}

func TestStraightLine() {
	c := credentials{user: "svc", token: "t0p"}
	fmt.Println(c.user)
}

func TestBranches(c credentials, audit bool) {
	if audit {
		fmt.Println(c.user, c.token)
	} else {
		fmt.Println(c.user)
	}
}

func TestLoop(tokens []string) string {
	joined := ""
	for _, t := range tokens {
		joined += t
	}
	return joined
}

func TestCalls(c credentials) {
	scrub := func(s string) string { return s[:1] + "..." }
	fmt.Println(scrub(c.token))
}
