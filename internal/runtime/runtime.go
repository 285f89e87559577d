/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package runtime holds process-wide identity constants used by logging,
// tracing, and the diagnostic HTTP handlers.
package runtime

var (
	// ApplicationName is the name of this application
	ApplicationName = "mapcache"
	// ApplicationVersion holds the version of this application
	ApplicationVersion = "0.1.0"
)
